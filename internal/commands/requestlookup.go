package commands

import (
	"context"

	"reqdash/internal/config"
	"reqdash/internal/dashboard"
	"reqdash/internal/service"
)

// openDashboard binds a dashboard to the active session and loads the
// caller's requests once. release must be called when done.
func openDashboard(ctx context.Context, cfg *config.Config, svc service.Service) (d *dashboard.Dashboard, release func(), err error) {
	scope, release, err := activeScope(ctx, cfg, svc)
	if err != nil {
		return nil, nil, err
	}
	d = dashboard.New(svc, scope, cfg.Logger())
	if err := d.Load(ctx); err != nil {
		release()
		return nil, nil, err
	}
	return d, release, nil
}

// lookupRequest resolves a reference argument against the loaded list.
// Numbers count positions in the full, unfiltered list.
func lookupRequest(d *dashboard.Dashboard, arg string) (service.Request, error) {
	ref, err := ParseRequestRef(arg)
	if err != nil {
		return service.Request{}, err
	}
	return ref.Resolve(d.Snapshot().All)
}
