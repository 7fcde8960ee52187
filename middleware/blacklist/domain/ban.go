package domain

import (
	"errors"
	"time"
)

type Key string

// Verdict é o resultado de uma consulta ou escalonamento para um identificador.
type Verdict int

const (
	Allow Verdict = iota
	RejectTemporary
	RejectPermanent
	// RejectGlobal vem do contador global de violações (ban de 24h).
	RejectGlobal
)

func (v Verdict) String() string {
	switch v {
	case Allow:
		return "allow"
	case RejectTemporary:
		return "temporary"
	case RejectPermanent:
		return "permanent"
	case RejectGlobal:
		return "global"
	default:
		return "unknown"
	}
}

func (v Verdict) Rejected() bool { return v != Allow }

// State é derivado na leitura a partir das chaves que existem no store.
// Nunca é gravado como valor.
//
//	blacklist_{ip} presente        -> PermanentBanned
//	temp_blacklist_{ip} presente   -> TempBanned
//	request_count_{ip} > 0         -> Windowed
//	nenhuma                        -> Clear
type State int

const (
	Clear State = iota
	Windowed
	TempBanned
	PermanentBanned
)

func (s State) String() string {
	switch s {
	case Clear:
		return "clear"
	case Windowed:
		return "windowed"
	case TempBanned:
		return "temp_banned"
	case PermanentBanned:
		return "permanent_banned"
	default:
		return "unknown"
	}
}

// CountMode define quais requisições alimentam o request_count.
type CountMode string

const (
	// CountRequests conta toda requisição antes de encaminhá-la.
	CountRequests CountMode = "request"
	// CountViolations conta só as respostas 429 do limitador por rota.
	CountViolations CountMode = "violation"
)

// Policy reúne os limiares e TTLs da lista negra. Zero values recebem os
// padrões em WithDefaults.
type Policy struct {
	ViolationThreshold       int64
	TempBanTTL               time.Duration
	PermanentBanTTL          time.Duration
	WasTempTTL               time.Duration
	WindowTTL                time.Duration
	GlobalViolationThreshold int64
	GlobalBanTTL             time.Duration
	CountMode                CountMode
}

func DefaultPolicy() Policy {
	return Policy{
		ViolationThreshold:       5,
		TempBanTTL:               60 * time.Second,
		PermanentBanTTL:          300 * time.Second,
		WasTempTTL:               300 * time.Second,
		WindowTTL:                60 * time.Second,
		GlobalViolationThreshold: 3,
		GlobalBanTTL:             24 * time.Hour,
		CountMode:                CountRequests,
	}
}

func (p Policy) WithDefaults() Policy {
	def := DefaultPolicy()
	if p.ViolationThreshold <= 0 {
		p.ViolationThreshold = def.ViolationThreshold
	}
	if p.TempBanTTL <= 0 {
		p.TempBanTTL = def.TempBanTTL
	}
	if p.PermanentBanTTL <= 0 {
		p.PermanentBanTTL = def.PermanentBanTTL
	}
	if p.WasTempTTL <= 0 {
		p.WasTempTTL = def.WasTempTTL
	}
	if p.WindowTTL <= 0 {
		p.WindowTTL = def.WindowTTL
	}
	if p.GlobalViolationThreshold <= 0 {
		p.GlobalViolationThreshold = def.GlobalViolationThreshold
	}
	if p.GlobalBanTTL <= 0 {
		p.GlobalBanTTL = def.GlobalBanTTL
	}
	if p.CountMode != CountViolations {
		p.CountMode = CountRequests
	}
	return p
}

// Escalation descreve o efeito de Tracker.Escalate.
type Escalation struct {
	Verdict Verdict
	// Count é o valor de request_count após o INCR.
	Count int64
	// Created indica que esta chamada criou a chave de ban (SETNX venceu).
	Created bool
}

// GlobalObservation descreve o efeito de uma violação no contador global.
type GlobalObservation struct {
	Count   int64
	Tripped bool
}

// ErrStoreUnavailable envolve qualquer falha do store (rede, timeout, resposta
// inválida). Use errors.Is.
var ErrStoreUnavailable = errors.New("blacklist store unavailable")
