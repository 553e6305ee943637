package connectivity

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/dmitrijs2005/parcelsync/internal/netx"
)

// Prober produces one State observation.
type Prober interface {
	Probe(ctx context.Context) State
}

type ProberFunc func(ctx context.Context) State

func (f ProberFunc) Probe(ctx context.Context) State { return f(ctx) }

// LinkProber reports Connected when a non-loopback interface is up. It
// knows nothing about reachability.
type LinkProber struct {
	hasLink func() (bool, error)
}

func NewLinkProber() *LinkProber {
	return &LinkProber{hasLink: netx.HasActiveInterface}
}

func (p *LinkProber) Probe(context.Context) State {
	up, err := p.hasLink()
	return State{Connected: err == nil && up}
}

// Pinger is satisfied by the api client.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HTTPProber calls the backend health endpoint.
type HTTPProber struct {
	pinger  Pinger
	timeout time.Duration
}

func NewHTTPProber(p Pinger, timeout time.Duration) *HTTPProber {
	return &HTTPProber{pinger: p, timeout: timeout}
}

func (p *HTTPProber) Probe(ctx context.Context) State {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.pinger.Ping(ctx); err != nil {
		return State{Connected: true, InternetReachable: Unreachable}
	}
	return State{Connected: true, InternetReachable: Reachable}
}

// GRPCHealthProber asks a grpc.health.v1 endpoint for SERVING.
type GRPCHealthProber struct {
	conn    *grpc.ClientConn
	client  healthpb.HealthClient
	service string
	timeout time.Duration
}

func NewGRPCHealthProber(addr, service string, timeout time.Duration) (*GRPCHealthProber, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	return &GRPCHealthProber{
		conn:    conn,
		client:  healthpb.NewHealthClient(conn),
		service: service,
		timeout: timeout,
	}, nil
}

func (p *GRPCHealthProber) Probe(ctx context.Context) State {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := p.client.Check(ctx, &healthpb.HealthCheckRequest{Service: p.service})
	if err != nil || resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return State{Connected: true, InternetReachable: Unreachable}
	}
	return State{Connected: true, InternetReachable: Reachable}
}

func (p *GRPCHealthProber) Close() error {
	return p.conn.Close()
}

// CombinedProber checks the link first and only asks for reachability
// when a link is up.
type CombinedProber struct {
	link  Prober
	reach Prober
}

func NewCombinedProber(link, reach Prober) *CombinedProber {
	return &CombinedProber{link: link, reach: reach}
}

func (p *CombinedProber) Probe(ctx context.Context) State {
	s := p.link.Probe(ctx)
	if !s.Connected {
		return State{Connected: false, InternetReachable: Unreachable}
	}
	r := p.reach.Probe(ctx)
	return State{Connected: true, InternetReachable: r.InternetReachable}
}
