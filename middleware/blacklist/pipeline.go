package blacklist

import (
	"net/http"
	"time"

	"github.com/felixge/httpsnoop"
)

// Rejection é a resposta de um Stage que encerra a requisição.
type Rejection struct {
	Status     int
	Detail     string
	RetryAfter time.Duration
}

// Result é o retorno de um Stage: seguir para o próximo (com a requisição
// possivelmente enriquecida) ou encerrar com uma Rejection.
type Result struct {
	req    *http.Request
	reject *Rejection
}

func Continue(r *http.Request) Result { return Result{req: r} }

func ShortCircuit(rej Rejection) Result { return Result{reject: &rej} }

// Rejected devolve a rejeição, se houver.
func (res Result) Rejected() (Rejection, bool) {
	if res.reject == nil {
		return Rejection{}, false
	}
	return *res.reject, true
}

// Stage é uma etapa antes do handler.
type Stage func(r *http.Request) Result

// Observer roda depois do handler com o status que ele respondeu.
type Observer func(r *http.Request, status int)

// Pipeline executa Stages em ordem; o primeiro ShortCircuit responde e nada
// depois dele (nem o handler) roda. Se todos seguirem, o handler roda e os
// Observers recebem o status final.
type Pipeline struct {
	Stages    []Stage
	Observers []Observer
}

func (p Pipeline) Then(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, stage := range p.Stages {
			res := stage(r)
			if rej, ok := res.Rejected(); ok {
				writeRejection(w, rej)
				return
			}
			if res.req != nil {
				r = res.req
			}
		}

		if len(p.Observers) == 0 {
			next.ServeHTTP(w, r)
			return
		}

		m := httpsnoop.CaptureMetrics(next, w, r)
		for _, obs := range p.Observers {
			obs(r, m.Code)
		}
	})
}
