package ports

import "github.com/alejandrodnm/sentibot/internal/domain"

// StatusSink recibe las líneas de estado y el dashboard. Las implementaciones
// deben serializar la salida: se invoca desde el loop y desde el heartbeat.
type StatusSink interface {
	Event(ev domain.StatusEvent)
	Dashboard(snap domain.Snapshot)
}
