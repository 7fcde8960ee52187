package blacklist

import (
	"strconv"
	"time"

	"library-gateway/middleware/blacklist/domain"
)

const globalBanDetail = "Your IP is blacklisted"

const storeUnavailableDetail = "Service temporarily unavailable"

// banDetail é a mensagem para um ban já ativo.
func banDetail(v domain.Verdict, p domain.Policy) string {
	switch v {
	case domain.RejectPermanent:
		return "Your IP is permanently blacklisted for " + humanDuration(p.PermanentBanTTL) + "."
	case domain.RejectTemporary:
		return "Your IP is temporarily blacklisted for " + humanDuration(p.TempBanTTL) + "."
	default:
		return globalBanDetail
	}
}

// escalationDetail é a mensagem para a requisição que acabou de cruzar o limiar.
func escalationDetail(v domain.Verdict, p domain.Policy) string {
	if v == domain.RejectPermanent {
		return "Too many requests, your IP is now permanently blacklisted for " + humanDuration(p.PermanentBanTTL) + "."
	}
	return "Too many requests, your IP is temporarily blacklisted for " + humanDuration(p.TempBanTTL) + "."
}

// humanDuration: 60s -> "1 minute", 300s -> "5 minutes", 24h -> "24 hours".
func humanDuration(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		return plural(int64(d/time.Hour), "hour")
	case d >= time.Minute && d%time.Minute == 0:
		return plural(int64(d/time.Minute), "minute")
	default:
		return plural(int64((d+time.Second-1)/time.Second), "second")
	}
}

func plural(n int64, unit string) string {
	s := strconv.FormatInt(n, 10) + " " + unit
	if n != 1 {
		s += "s"
	}
	return s
}

// formatSeconds arredonda para cima: Retry-After nunca promete antes da hora.
func formatSeconds(d time.Duration) string {
	secs := int64(d / time.Second)
	if d%time.Second != 0 {
		secs++
	}
	return strconv.FormatInt(secs, 10)
}
