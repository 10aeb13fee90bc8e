package domain

import "errors"

// Taxonomía de errores del orquestador. Los errores de admisión
// (ErrCycleInProgress, ErrInvalidConfig) se devuelven síncronamente al caller;
// los errores de ciclo se capturan en el CycleResult y solo se ven vía status.
var (
	// ErrCycleInProgress: admisión rechazada, la petición se descarta (no hay cola).
	ErrCycleInProgress = errors.New("cycle already in progress")
	// ErrFeedUnavailable: no hay snapshot cacheado y el refresh falló.
	ErrFeedUnavailable = errors.New("signal feed unavailable")
	// ErrWorkforceTimeout: el workforce no respondió dentro del timeout.
	ErrWorkforceTimeout = errors.New("decision workforce timed out")
	// ErrInvalidConfig: configuración rechazada, el estado del controller no cambia.
	ErrInvalidConfig = errors.New("invalid configuration")
)
