// Package application contém os casos de uso da lista negra: a decisão por
// identificador (Tracker.Decide), o escalonamento temporário -> permanente
// (Tracker.Escalate) e o contador global de violações (GlobalCounter).
//
// Depende apenas do pacote domain e não conhece net/http. Todo o estado vive
// no domain.Store; não há locks em processo.
package application
