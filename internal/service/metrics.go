package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	registerTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_register_total",
			Help: "Registration attempts by result",
		},
		[]string{"result"},
	)

	loginTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_login_total",
			Help: "Login attempts by result",
		},
		[]string{"result"},
	)

	refreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_refresh_total",
			Help: "Refresh attempts by result",
		},
		[]string{"result"},
	)

	tokensIssuedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_tokens_issued_total",
			Help: "Signed tokens by kind",
		},
		[]string{"kind"},
	)

	refreshTokensPurgedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "auth_refresh_tokens_purged_total",
			Help: "Expired refresh token records removed by the cleanup loop",
		},
	)
)

const (
	resultSuccess   = "success"
	resultDuplicate = "duplicate"
	resultInvalid   = "invalid"
	resultExpired   = "expired"
	resultError     = "error"
)
