package authcore

import (
	"context"

	"github.com/MrEthical07/authcore/refresh"
)

// engineRefresher adapts the Engine's credential issuer to the refresh
// coordinator's Refresher interface without the refresh package importing
// authcore.
type engineRefresher struct {
	engine *Engine
}

func (r engineRefresher) Refresh(ctx context.Context, refreshToken string) (refresh.Credential, error) {
	cred, err := r.engine.Refresh(ctx, refreshToken)
	if err != nil {
		return refresh.Credential{}, err
	}
	return refresh.Credential{
		AccessToken:   cred.AccessToken,
		RefreshToken:  cred.RefreshToken,
		AccessExpiry:  cred.AccessExpiry,
		RefreshExpiry: cred.RefreshExpiry,
	}, nil
}

// Refresher exposes the engine's refresh exchange in the shape the
// client-side [refresh.Coordinator] consumes:
//
//	coord := refresh.NewCoordinator(engine.Refresher())
func (e *Engine) Refresher() refresh.Refresher {
	return engineRefresher{engine: e}
}

// NewCoordinator builds a refresh coordinator bound to this engine, seeded
// with an already-issued credential.
func (e *Engine) NewCoordinator(cred Credential) *refresh.Coordinator {
	coord := refresh.NewCoordinator(e.Refresher())
	coord.SetCredential(refresh.Credential{
		AccessToken:   cred.AccessToken,
		RefreshToken:  cred.RefreshToken,
		AccessExpiry:  cred.AccessExpiry,
		RefreshExpiry: cred.RefreshExpiry,
	})
	return coord
}
