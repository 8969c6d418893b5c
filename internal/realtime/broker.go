package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Event sinaliza que alguma linha de uma tabela observada mudou. O payload
// carrega apenas o mínimo para roteamento; consumidores refazem a leitura
// completa em vez de aplicar diffs.
type Event struct {
	Table      string    `json:"table"`
	Action     string    `json:"action"`
	RecordID   uuid.UUID `json:"record_id"`
	OwnerID    uuid.UUID `json:"owner_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

const (
	ActionInsert = "INSERT"
	ActionUpdate = "UPDATE"
)

// Broker publica eventos de mudança no Redis e distribui aos assinantes
// locais. Sem cliente Redis configurado (testes, dev de nó único) o evento é
// entregue diretamente aos assinantes do próprio processo.
type Broker struct {
	rdb      *redis.Client
	channel  string
	debounce time.Duration
	logger   zerolog.Logger

	mu   sync.Mutex
	subs map[*Subscription]struct{}
}

// NewBroker cria broker sobre o canal informado.
func NewBroker(rdb *redis.Client, channel string, debounce time.Duration, logger zerolog.Logger) *Broker {
	if debounce <= 0 {
		debounce = 250 * time.Millisecond
	}
	return &Broker{
		rdb:      rdb,
		channel:  channel,
		debounce: debounce,
		logger:   logger,
		subs:     make(map[*Subscription]struct{}),
	}
}

// Start assina o canal Redis e repassa eventos recebidos aos assinantes.
// Retorna imediatamente; o loop roda até o contexto ser cancelado.
func (b *Broker) Start(ctx context.Context) {
	if b.rdb == nil {
		return
	}

	sub := b.rdb.Subscribe(ctx, b.channel)
	ch := sub.Channel()

	go func() {
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					b.logger.Warn().Err(err).Msg("realtime: payload inválido")
					continue
				}
				b.dispatch(ev)
			}
		}
	}()
}

// Publish emite o evento para todos os nós via Redis. Sem Redis, entrega
// local direta.
func (b *Broker) Publish(ctx context.Context, ev Event) error {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}

	if b.rdb == nil {
		b.dispatch(ev)
		return nil
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, payload).Err()
}

// Subscribe registra assinante com filtro opcional. O handle devolvido deve
// ser encerrado com Unsubscribe quando a visão que o criou for desmontada.
func (b *Broker) Subscribe(filter func(Event) bool) *Subscription {
	sub := &Subscription{
		C:      make(chan Event, 1),
		broker: b,
		filter: filter,
	}

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	return sub
}

func (b *Broker) dispatch(ev Event) {
	b.mu.Lock()
	targets := make([]*Subscription, 0, len(b.subs))
	for sub := range b.subs {
		if sub.filter == nil || sub.filter(ev) {
			targets = append(targets, sub)
		}
	}
	b.mu.Unlock()

	for _, sub := range targets {
		sub.offer(ev, b.debounce)
	}
}

func (b *Broker) remove(sub *Subscription) {
	b.mu.Lock()
	delete(b.subs, sub)
	b.mu.Unlock()
}

// Subscription é o handle cancelável de uma assinatura. Eventos em rajada
// dentro da janela de debounce são coalescidos em uma única entrega: quem
// consome refaz a leitura inteira, então só o fato da mudança importa.
type Subscription struct {
	C chan Event

	broker *Broker
	filter func(Event) bool

	mu      sync.Mutex
	timer   *time.Timer
	pending *Event
	closed  bool
}

func (s *Subscription) offer(ev Event, debounce time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	s.pending = &ev
	if s.timer == nil {
		s.timer = time.AfterFunc(debounce, s.flush)
	}
}

func (s *Subscription) flush() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.timer = nil
	if s.closed || s.pending == nil {
		return
	}

	ev := *s.pending
	s.pending = nil

	// Entrega sem bloquear: consumidor lento perde a coalescência, não trava
	// o broker.
	select {
	case s.C <- ev:
	default:
	}
}

// Unsubscribe encerra a assinatura e fecha o canal de eventos.
func (s *Subscription) Unsubscribe() {
	s.broker.remove(s)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.pending = nil
	close(s.C)
}
