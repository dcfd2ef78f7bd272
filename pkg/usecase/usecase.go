package usecase

import (
	"github.com/seabird-lab/beacon/pkg/domain/interfaces"
	"github.com/seabird-lab/beacon/pkg/domain/model/config"
	"github.com/seabird-lab/beacon/pkg/service/push"
)

type UseCases struct {
	repo    interfaces.Repository
	timing  config.Timing
	pushSvc push.Service

	Presence  *PresenceUseCase
	Attention *AttentionUseCase
}

type Option func(*UseCases)

// WithTiming overrides the default timing profile.
func WithTiming(timing config.Timing) Option {
	return func(uc *UseCases) {
		uc.timing = timing
	}
}

// WithPush enables push fan-out on attention sends.
func WithPush(svc push.Service) Option {
	return func(uc *UseCases) {
		uc.pushSvc = svc
	}
}

func New(repo interfaces.Repository, opts ...Option) *UseCases {
	uc := &UseCases{
		repo:   repo,
		timing: config.DefaultTiming(),
	}

	for _, opt := range opts {
		opt(uc)
	}

	uc.Presence = NewPresenceUseCase(repo, uc.timing)
	uc.Attention = NewAttentionUseCase(repo, uc.timing, uc.pushSvc)

	return uc
}
