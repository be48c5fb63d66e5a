package testutil

import (
	"context"

	"github.com/tradingbrain/licensing/internal/types"
)

func SetupContext() context.Context {
	ctx := context.Background()
	ctx = types.SetRequestID(ctx, types.GenerateUUID())
	return ctx
}
