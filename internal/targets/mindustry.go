package targets

import (
	"context"
	"fmt"

	"github.com/papapumpkin/buildscript/internal/hostenv"
	"github.com/papapumpkin/buildscript/internal/mindustry"
	"github.com/papapumpkin/buildscript/internal/target"
)

type mindustryInit struct{}

type mindustryTarget struct {
	jar string
}

func serverJar(p *target.InitParams) string {
	return layout(p.Root).Tool("mindustry", fmt.Sprintf("server-%s.jar", p.Config.MindustryVersion))
}

// InitializeHost never adopts a host install; server jars are version
// pinned per workspace.
func (mindustryInit) InitializeHost(context.Context, target.Enablement, *target.Collection, *target.InitParams) (target.Target, error) {
	return nil, nil
}

func (mindustryInit) InitializeCached(_ context.Context, _ target.Enablement, _ *target.Collection, p *target.InitParams) (target.Target, error) {
	jar := serverJar(p)
	if !hostenv.Exists(jar) {
		return nil, nil
	}
	return &mindustryTarget{jar: jar}, nil
}

func (mindustryInit) InitializeLocal(ctx context.Context, _ target.Enablement, _ *target.Collection, p *target.InitParams) (target.Target, error) {
	url, err := mindustry.ServerURL(p.Config.MindustryVersion)
	if err != nil {
		return nil, err
	}
	jar := serverJar(p)
	if err := p.Fetch.Download(ctx, url, jar); err != nil {
		return nil, err
	}
	return &mindustryTarget{jar: jar}, nil
}

func (m *mindustryTarget) Build(_ context.Context, _ *target.Collection, p *target.BuildParams) error {
	p.Env["MINDUSTRY_PATH"] = m.jar
	return nil
}
