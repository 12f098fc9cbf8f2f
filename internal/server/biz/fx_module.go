package biz

import (
	"context"

	"github.com/zhenzou/executors"
	"go.uber.org/fx"

	"github.com/arbiterhq/arbiter/internal/pdp"
	"github.com/arbiterhq/arbiter/internal/pdp/dispatch"
)

var Module = fx.Module("biz",
	fx.Provide(NewAuthService),
	fx.Provide(NewPolicyService),
	fx.Provide(func(policy *PolicyService) *pdp.Evaluator {
		return policy.Evaluator()
	}),
	fx.Provide(dispatch.New),
	fx.Provide(NewTraceService),
	fx.Provide(NewCheckService),
	fx.Provide(NewSystemService),
	fx.Invoke(func(lc fx.Lifecycle, policy *PolicyService, executor executors.ScheduledExecutor) {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				return policy.Start(ctx, executor)
			},
			OnStop: func(ctx context.Context) error {
				return policy.Stop(ctx)
			},
		})
	}),
)
