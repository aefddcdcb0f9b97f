package websocket

import (
	"context"
	"errors"
	"time"

	gws "github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/zeusync/replica/internal/core/codec"
	"github.com/zeusync/replica/internal/core/entity"
	"github.com/zeusync/replica/internal/core/observability/log"
	"github.com/zeusync/replica/internal/core/observability/metrics"
	"github.com/zeusync/replica/internal/core/prefab"
	"github.com/zeusync/replica/internal/core/replication"
	"github.com/zeusync/replica/internal/core/replication/verify"
	"github.com/zeusync/replica/internal/game"
	"github.com/zeusync/replica/pkg/sequence"
)

var ErrClientClosed = errors.New("client connection closed")

// ClientConfig holds client relay settings.
type ClientConfig struct {
	URL                 string
	TickRate            int
	InterpolationDelay  int // ticks behind the newest received tick
	JitterBuffer        int
	InterpolationBuffer int
	VerifyPredictions   bool
	VerificationHistory int
}

// Client mirrors the server world. The reader goroutine only parses frames;
// Step applies them and runs prediction on the caller's goroutine.
type Client struct {
	cfg     ClientConfig
	logger  log.Log
	metrics metrics.Recorder

	conn    *gws.Conn
	frames  chan Frame
	readErr chan error

	store   *entity.MemoryStore
	coll    *replication.Collection
	prefabs *prefab.Registry
	buffer  *sequence.JitterBuffer[Frame]

	// tick goroutine only
	player   replication.PlayerID
	session  string
	welcomed bool
	latest   replication.Tick
	input    game.Input
	writer   *codec.BinaryWriter
	checks   []check
}

// check is a server update whose tick is compared against the prediction
// stored for that tick once the current step has stored its own.
type check struct {
	id   replication.NetworkID
	tick replication.Tick
}

// Dial connects to a relay server and starts reading frames.
func Dial(ctx context.Context, cfg ClientConfig, reg *replication.Registry, prefabs *prefab.Registry, logger log.Log, m metrics.Recorder) (*Client, error) {
	if logger == nil {
		logger = log.Provide()
	}
	if m == nil {
		m = metrics.Nop{}
	}

	conn, _, err := gws.DefaultDialer.DialContext(ctx, cfg.URL, nil)
	if err != nil {
		return nil, err
	}

	opts := []replication.Option{
		replication.WithLogger(logger),
		replication.WithMetrics(m),
		replication.WithInterpolationCapacity(cfg.InterpolationBuffer),
	}
	if cfg.VerifyPredictions {
		opts = append(opts, replication.WithInstrumentation(verify.New(cfg.VerificationHistory)))
	}

	store := entity.NewMemoryStore()
	c := &Client{
		cfg:     cfg,
		logger:  logger.With(log.String("component", "relay.client")),
		metrics: m,
		conn:    conn,
		frames:  make(chan Frame, 1024),
		readErr: make(chan error, 1),
		store:   store,
		coll:    replication.NewCollection(store, reg, opts...),
		prefabs: prefabs,
		buffer:  sequence.NewJitterBuffer[Frame](cfg.JitterBuffer),
		writer:  codec.NewWriter(codec.Audience{}),
	}
	go c.readLoop()
	return c, nil
}

func (c *Client) readLoop() {
	defer close(c.frames)
	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			c.readErr <- err
			return
		}
		if kind != gws.BinaryMessage {
			continue
		}
		f, err := ParseFrame(data)
		if err != nil {
			c.logger.Warn("Dropping malformed frame", log.Error(err))
			continue
		}
		c.frames <- f
	}
}

// Run steps the client at the configured tick rate until ctx is done or the
// connection drops.
func (c *Client) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(max(c.cfg.TickRate, 1))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case err := <-c.readErr:
				if gws.IsCloseError(err, gws.CloseNormalClosure, gws.CloseGoingAway) {
					return ErrClientClosed
				}
				return err
			case <-ticker.C:
				c.Step(c.input, float32(interval.Seconds()))
			}
		}
	})
	g.Go(func() error {
		<-ctx.Done()
		return c.Close()
	})
	return g.Wait()
}

// SetInput sets the input used by Run for the following ticks. Tick
// goroutine only.
func (c *Client) SetInput(in game.Input) { c.input = in }

// Step applies every received frame, restores predicted state, predicts one
// tick of in and writes interpolated state for render. The prediction is
// stored under latest+1, the tick the server stamps after applying in.
func (c *Client) Step(in game.Input, dt float32) {
	c.drainFrames()
	c.buffer.Drain(uint32(c.latest), func(_ uint32, f Frame) { c.apply(f) })

	if !c.welcomed {
		c.checks = c.checks[:0]
		return
	}

	c.coll.Rollback()
	for _, rec := range c.coll.Records() {
		if rec.Local() {
			game.Apply(c.store, rec.Entity, in, dt)
		}
	}
	c.coll.StorePredictions(c.latest + 1)
	for _, ch := range c.checks {
		c.verify(ch.id, ch.tick)
	}
	c.checks = c.checks[:0]
	c.sendInput(in)

	render := replication.RenderTime{}
	if delay := replication.Tick(c.cfg.InterpolationDelay); c.latest > delay {
		render.Tick = c.latest - delay
	}
	c.coll.Interpolate(render)
}

func (c *Client) drainFrames() {
	for {
		select {
		case f, ok := <-c.frames:
			if !ok {
				return
			}
			if f.Kind == KindWelcome {
				c.welcome(f)
				continue
			}
			if f.Tick > c.latest {
				c.latest = f.Tick
			}
			if !c.buffer.Push(uint32(f.Tick), f) {
				c.logger.Warn("Jitter buffer full, dropping frame",
					log.String("kind", f.Kind.String()),
					log.Int32("network_id", int32(f.ID)))
			}
		default:
			return
		}
	}
}

func (c *Client) welcome(f Frame) {
	c.player = replication.PlayerID(f.ID)
	c.session = string(f.Payload)
	c.welcomed = true
	c.coll.SetLocalPlayer(c.player)
	c.logger.Info("Joined server",
		log.String("session_id", c.session),
		log.Int32("player", int32(c.player)))
}

func (c *Client) apply(f Frame) {
	switch f.Kind {
	case KindSpawn:
		h, err := c.prefabs.Spawn(c.store, f.TypeID)
		if err != nil {
			c.logger.Error("Failed to spawn entity", log.Int32("network_id", int32(f.ID)), log.Error(err))
			return
		}
		if err := c.coll.Register(h, f.ID); err != nil {
			c.logger.Error("Failed to register entity", log.Int32("network_id", int32(f.ID)), log.Error(err))
			c.store.Destroy(h)
		}
	case KindDespawn:
		h, err := c.coll.Unregister(f.ID)
		if err != nil {
			c.logger.Warn("Despawn for unknown entity", log.Int32("network_id", int32(f.ID)))
			return
		}
		c.store.Destroy(h)
	case KindUpdate:
		r := codec.NewReader(f.Payload, codec.Audience{})
		if err := c.coll.ApplyUpdate(f.Tick, f.ID, r); err != nil {
			c.logger.Error("Failed to apply update",
				log.Int32("network_id", int32(f.ID)),
				log.Uint32("tick", uint32(f.Tick)),
				log.Error(err))
			return
		}
		if c.cfg.VerifyPredictions && c.coll.IsPredicted(f.ID) {
			c.checks = append(c.checks, check{id: f.ID, tick: f.Tick})
		}
	default:
		c.logger.Warn("Unexpected frame from server", log.String("kind", f.Kind.String()))
	}
}

func (c *Client) verify(id replication.NetworkID, tick replication.Tick) {
	ok, err := c.coll.VerifyPrediction(id, tick)
	switch {
	case errors.Is(err, replication.ErrNoSample):
	case err != nil:
		c.logger.Warn("Prediction check failed", log.Error(err))
	case !ok:
		c.logger.Debug("Misprediction",
			log.Int32("network_id", int32(id)),
			log.Uint32("tick", uint32(tick)))
	}
}

func (c *Client) sendInput(in game.Input) {
	c.writer.Reset(codec.Audience{})
	in.Encode(c.writer)
	f := Frame{Kind: KindInput, Tick: c.latest, Payload: c.writer.Bytes()}
	msg, _ := f.MarshalBinary()
	_ = c.conn.SetWriteDeadline(time.Now().Add(time.Second))
	if err := c.conn.WriteMessage(gws.BinaryMessage, msg); err != nil {
		c.logger.Debug("Failed to send input", log.Error(err))
	}
}

// Close sends a close frame and releases the connection.
func (c *Client) Close() error {
	_ = c.conn.WriteControl(gws.CloseMessage,
		gws.FormatCloseMessage(gws.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return c.conn.Close()
}

func (c *Client) Player() replication.PlayerID { return c.player }

func (c *Client) Session() string { return c.session }

// LatestTick is the newest server tick received.
func (c *Client) LatestTick() replication.Tick { return c.latest }

// Collection exposes the mirrored collection. Tick goroutine only.
func (c *Client) Collection() *replication.Collection { return c.coll }

// Store exposes the mirrored store. Tick goroutine only.
func (c *Client) Store() *entity.MemoryStore { return c.store }
