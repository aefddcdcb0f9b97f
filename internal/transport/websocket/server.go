package websocket

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	gws "github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/zeusync/replica/internal/core/codec"
	"github.com/zeusync/replica/internal/core/entity"
	"github.com/zeusync/replica/internal/core/observability/log"
	"github.com/zeusync/replica/internal/core/observability/metrics"
	"github.com/zeusync/replica/internal/core/prefab"
	"github.com/zeusync/replica/internal/core/replication"
	"github.com/zeusync/replica/internal/game"
	"github.com/zeusync/replica/pkg/generic"
)

var (
	ErrServerFull    = errors.New("server full")
	ErrServerRunning = errors.New("server already running")
)

const sendBuffer = 256

// ServerConfig holds relay settings.
type ServerConfig struct {
	ListenAddr string
	TickRate   int
	MaxClients int
	NPCs       int
}

type session struct {
	id     uuid.UUID
	player replication.PlayerID
	conn   *gws.Conn
	send   chan []byte

	// tick goroutine only
	entity  entity.Handle
	netID   replication.NetworkID
	known   map[replication.NetworkID]uint32 // id -> generation
	dropped bool

	closeOnce sync.Once
}

func (s *session) close() {
	s.closeOnce.Do(func() {
		s.dropped = true
		close(s.send)
	})
}

type inputEvent struct {
	session *session
	input   game.Input
}

// Server owns the authoritative world. Connection goroutines only hand
// events to the tick goroutine through channels; Step is the sole mutator of
// the store and the collection.
type Server struct {
	cfg     ServerConfig
	logger  log.Log
	metrics metrics.Recorder

	store   *entity.MemoryStore
	coll    *replication.Collection
	prefabs *prefab.Registry

	upgrader gws.Upgrader
	writers  *generic.Pool[*codec.BinaryWriter]

	joins  chan *session
	leaves chan *session
	inputs chan inputEvent

	clients    atomic.Int32
	nextPlayer atomic.Int32
	running    atomic.Bool
	done       chan struct{}
	doneOnce   sync.Once

	// tick goroutine only
	tick     replication.Tick
	sessions map[uuid.UUID]*session
	ids      idAllocator
	npcs     []entity.Handle
}

// NewServer builds a relay around an already populated registry.
func NewServer(cfg ServerConfig, reg *replication.Registry, prefabs *prefab.Registry, logger log.Log, m metrics.Recorder) *Server {
	if logger == nil {
		logger = log.Provide()
	}
	if m == nil {
		m = metrics.Nop{}
	}
	store := entity.NewMemoryStore()
	s := &Server{
		cfg:     cfg,
		logger:  logger.With(log.String("component", "relay.server")),
		metrics: m,
		store:   store,
		coll: replication.NewCollection(store, reg,
			replication.WithLogger(logger),
			replication.WithMetrics(m),
		),
		prefabs: prefabs,
		upgrader: gws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		writers: generic.NewResetPool(
			func() *codec.BinaryWriter { return codec.NewWriter(codec.Audience{}) },
			func(w *codec.BinaryWriter) { w.Reset(codec.Audience{}) },
		),
		joins:    make(chan *session, 16),
		leaves:   make(chan *session, 16),
		inputs:   make(chan inputEvent, 1024),
		done:     make(chan struct{}),
		sessions: make(map[uuid.UUID]*session),
		ids:      newIDAllocator(),
	}
	return s
}

// Handler serves websocket upgrades on any path.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(s.handleWebSocket)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if int(s.clients.Load()) >= s.cfg.MaxClients {
		s.logger.Warn("Maximum clients reached, rejecting connection",
			log.String("remote_addr", r.RemoteAddr))
		http.Error(w, ErrServerFull.Error(), http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection", log.Error(err))
		return
	}

	sess := &session{
		id:     uuid.New(),
		player: replication.PlayerID(s.nextPlayer.Add(1)),
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		netID:  replication.InvalidNetworkID,
		known:  make(map[replication.NetworkID]uint32),
	}
	s.metrics.ClientsConnected(int(s.clients.Add(1)))

	s.logger.Info("Client connected",
		log.String("session_id", sess.id.String()),
		log.Int32("player", int32(sess.player)),
		log.String("remote_addr", conn.RemoteAddr().String()))

	go s.writeLoop(sess)
	select {
	case s.joins <- sess:
	case <-s.done:
		sess.close()
		s.metrics.ClientsConnected(int(s.clients.Add(-1)))
		return
	}
	s.readLoop(sess)
}

func (s *Server) readLoop(sess *session) {
	defer func() {
		select {
		case s.leaves <- sess:
		case <-s.done:
		}
		s.metrics.ClientsConnected(int(s.clients.Add(-1)))
		s.logger.Info("Client disconnected", log.String("session_id", sess.id.String()))
	}()

	clientLogger := s.logger.With(log.String("session_id", sess.id.String()))
	for {
		kind, data, err := sess.conn.ReadMessage()
		if err != nil {
			if !gws.IsCloseError(err, gws.CloseNormalClosure, gws.CloseGoingAway) {
				clientLogger.Debug("Read failed", log.Error(err))
			}
			return
		}
		if kind != gws.BinaryMessage {
			continue
		}
		f, err := ParseFrame(data)
		if err != nil {
			clientLogger.Warn("Dropping malformed frame", log.Error(err))
			continue
		}
		if f.Kind != KindInput {
			clientLogger.Warn("Unexpected frame from client", log.String("kind", f.Kind.String()))
			continue
		}
		r := codec.NewReader(f.Payload, codec.Audience{})
		in := game.DecodeInput(r)
		if err := r.Err(); err != nil {
			clientLogger.Warn("Dropping malformed input", log.Error(err))
			continue
		}
		select {
		case s.inputs <- inputEvent{session: sess, input: in}:
		default:
			clientLogger.Warn("Input queue full, dropping input")
		}
	}
}

func (s *Server) writeLoop(sess *session) {
	defer sess.conn.Close()
	for msg := range sess.send {
		_ = sess.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := sess.conn.WriteMessage(gws.BinaryMessage, msg); err != nil {
			s.logger.Debug("Write failed",
				log.String("session_id", sess.id.String()),
				log.Error(err))
			// unblock the reader, then drain until the tick goroutine
			// releases the session
			_ = sess.conn.Close()
			for range sess.send {
			}
			return
		}
	}
	_ = sess.conn.WriteMessage(gws.CloseMessage, gws.FormatCloseMessage(gws.CloseNormalClosure, ""))
}

// SpawnNPCs creates n wandering npcs. It must run on the tick goroutine or
// before Run.
func (s *Server) SpawnNPCs(n int) error {
	for i := 0; i < n; i++ {
		h, err := s.prefabs.Spawn(s.store, game.NPCPrefab)
		if err != nil {
			return err
		}
		if err := s.coll.Register(h, s.ids.allocate()); err != nil {
			return err
		}
		s.npcs = append(s.npcs, h)
	}
	return nil
}

// Run spawns the configured npcs and drives Step at the tick rate until ctx
// is done.
func (s *Server) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrServerRunning
	}
	defer s.running.Store(false)

	if err := s.SpawnNPCs(s.cfg.NPCs); err != nil {
		return err
	}

	interval := time.Second / time.Duration(max(s.cfg.TickRate, 1))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("Tick loop started", log.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			s.logger.Info("Tick loop stopped")
			return nil
		case <-ticker.C:
			s.Step(float32(interval.Seconds()))
		}
	}
}

// ListenAndServe runs the http listener and the tick loop until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, mux *http.ServeMux) error {
	mux.Handle("/ws", s.Handler())
	httpServer := &http.Server{Addr: s.cfg.ListenAddr, Handler: mux}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("Server listening", log.String("addr", s.cfg.ListenAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return s.Run(ctx)
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// Step advances the world by one tick and broadcasts the result.
func (s *Server) Step(dt float32) {
	s.drainJoins()
	s.drainLeaves()
	s.drainInputs(dt)

	s.tick++
	s.coll.SetTick(s.tick)
	for _, h := range s.npcs {
		game.Wander(s.store, h, s.tick)
	}

	s.broadcast()
}

func (s *Server) drainJoins() {
	for {
		select {
		case sess := <-s.joins:
			s.join(sess)
		default:
			return
		}
	}
}

func (s *Server) drainLeaves() {
	for {
		select {
		case sess := <-s.leaves:
			s.leave(sess)
		default:
			return
		}
	}
}

func (s *Server) drainInputs(dt float32) {
	for {
		select {
		case ev := <-s.inputs:
			if _, ok := s.sessions[ev.session.id]; !ok || ev.session.entity.IsNil() {
				continue
			}
			game.Apply(s.store, ev.session.entity, ev.input, dt)
		default:
			return
		}
	}
}

func (s *Server) join(sess *session) {
	h, err := s.prefabs.Spawn(s.store, game.PlayerPrefab)
	if err != nil {
		s.logger.Error("Failed to spawn player", log.Error(err))
		sess.close()
		return
	}
	entity.Set(s.store, h, replication.OwnerKey, replication.Owner{Player: sess.player})
	entity.Set(s.store, h, game.NameKey, game.Name{Value: sess.id.String()[:8]})
	if len(s.npcs) > 0 {
		entity.Set(s.store, h, game.TargetKey, game.Target{Entity: s.npcs[int(sess.player)%len(s.npcs)]})
	}

	id := s.ids.allocate()
	if err := s.coll.Register(h, id); err != nil {
		s.logger.Error("Failed to register player", log.Error(err))
		s.store.Destroy(h)
		sess.close()
		return
	}
	sess.entity = h
	sess.netID = id
	s.sessions[sess.id] = sess

	s.enqueue(sess, Frame{
		Kind:    KindWelcome,
		Tick:    s.tick,
		ID:      replication.NetworkID(sess.player),
		Payload: []byte(sess.id.String()),
	})
}

func (s *Server) leave(sess *session) {
	if _, ok := s.sessions[sess.id]; !ok {
		return
	}
	delete(s.sessions, sess.id)
	sess.close()

	if _, err := s.coll.Unregister(sess.netID); err != nil {
		s.logger.Error("Failed to unregister player", log.Error(err))
		return
	}
	s.store.Destroy(sess.entity)
	s.ids.release(sess.netID)
}

func (s *Server) broadcast() {
	records := s.coll.Records()
	live := make(map[replication.NetworkID]bool, len(records))
	for _, rec := range records {
		live[rec.ID] = true
	}

	for _, sess := range s.sessions {
		// a reused id shows up with a new generation and is respawned
		for id, gen := range sess.known {
			if !live[id] || s.ids.generation(id) != gen {
				s.enqueue(sess, Frame{Kind: KindDespawn, Tick: s.tick, ID: id})
				delete(sess.known, id)
			}
		}
		for _, rec := range records {
			if _, ok := sess.known[rec.ID]; !ok {
				typeID, _ := prefab.TypeOf(s.store, rec.Entity)
				s.enqueue(sess, Frame{Kind: KindSpawn, Tick: s.tick, ID: rec.ID, TypeID: typeID})
				sess.known[rec.ID] = s.ids.generation(rec.ID)
			}
			s.sendUpdate(sess, rec)
		}
	}
}

func (s *Server) sendUpdate(sess *session, rec *replication.Record) {
	owner, _ := entity.Get(s.store, rec.Entity, replication.OwnerKey)

	w := s.writers.Get()
	defer s.writers.Put(w)
	w.Reset(codec.Audience{Predicting: owner.Player == sess.player})

	if err := s.coll.GenerateSnapshot(rec.ID, w); err != nil {
		s.logger.Error("Failed to generate snapshot",
			log.Int32("network_id", int32(rec.ID)),
			log.Error(err))
		return
	}
	payload := make([]byte, w.Len())
	copy(payload, w.Bytes())
	s.enqueue(sess, Frame{Kind: KindUpdate, Tick: s.tick, ID: rec.ID, Payload: payload})
}

func (s *Server) enqueue(sess *session, f Frame) {
	if sess.dropped {
		return
	}
	msg, _ := f.MarshalBinary()
	select {
	case sess.send <- msg:
	default:
		// the writer exits, the reader fails and leave cleans up next tick
		s.logger.Warn("Client too slow, disconnecting", log.String("session_id", sess.id.String()))
		sess.close()
	}
}

func (s *Server) shutdown() {
	s.doneOnce.Do(func() { close(s.done) })
	for _, sess := range s.sessions {
		sess.close()
	}
	clear(s.sessions)
}

// Tick returns the current server tick. Tick goroutine only.
func (s *Server) Tick() replication.Tick { return s.tick }

// Sessions returns the number of joined sessions. Tick goroutine only.
func (s *Server) Sessions() int { return len(s.sessions) }

// Collection exposes the authoritative collection. Tick goroutine only.
func (s *Server) Collection() *replication.Collection { return s.coll }

// Store exposes the authoritative store. Tick goroutine only.
func (s *Server) Store() *entity.MemoryStore { return s.store }
