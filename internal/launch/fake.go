package launch

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

const providerFake = "fake"

// FakeLauncher returns synthetic instance ids without touching a provider. Used for local
// development and smoke tests of the HTTP surface.
type FakeLauncher struct{}

func NewFakeLauncher() *FakeLauncher {
	return &FakeLauncher{}
}

func (f *FakeLauncher) Provider() string {
	return providerFake
}

func (f *FakeLauncher) Launch(ctx context.Context, _ Request) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, classify(providerFake, "launch", err, func(error) (string, bool, bool) { return "", false, false })
	}
	id := strings.ReplaceAll(uuid.NewString(), "-", "")[:17]
	return Result{InstanceID: "i-fake-" + id, Provider: providerFake}, nil
}
