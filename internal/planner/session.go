package planner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/npezzotti/go-tripplanner/internal/types"
)

const ReasonRoomDeleted = "the room was closed by its controller"

type SessionConfig struct {
	Backend      Backend
	Catalog      *Catalog
	Countries    *Countries
	Ranker       Ranker
	PollInterval time.Duration
	Logger       *log.Logger
}

// SessionEvents are invoked from sync goroutines and must not call Unmount.
// Any of them may be nil.
type SessionEvents struct {
	OnFocus      func(Focus, CameraMove)
	OnPage       func(Page)
	OnMessages   func([]ChatEntry)
	OnError      func(error)
	OnTerminated func(reason string)
}

// Session is one mounted planning view: the room focus, the catalog, the
// globe and the chat for a single room.
type Session struct {
	log      *log.Logger
	roomCode string
	backend  Backend
	ranker   Ranker
	events   SessionEvents

	userId       *Latest[string]
	isController *Latest[bool]
	lastActivity *Latest[time.Time]

	store    *SelectionStore
	view     *CatalogView
	globe    *Globe
	chat     *ChatSync
	names    *Names
	debounce *Debouncer

	roomCh *RoomChannel
	msgCh  *MessageChannel

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	mounted    bool
	closed     bool
	terminated bool
}

// Mount opens the room and message channels for roomCode. It fails with
// ErrNotFound when the room does not exist.
func Mount(ctx context.Context, roomCode, userId string, cfg SessionConfig, events SessionEvents) (*Session, error) {
	if !ValidRoomCode(roomCode) {
		return nil, ErrInvalidRoomCode
	}
	roomCode = NormalizeRoomCode(roomCode)

	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	catalog := cfg.Catalog
	if catalog == nil {
		catalog = NewCatalog(nil)
	}

	sessCtx, cancel := context.WithCancel(context.Background())
	s := &Session{
		log:          logger,
		roomCode:     roomCode,
		backend:      cfg.Backend,
		ranker:       cfg.Ranker,
		events:       events,
		userId:       NewLatest(userId),
		isController: NewLatest(false),
		lastActivity: NewLatest(time.Now()),
		names:        NewNames(cfg.Backend),
		debounce:     NewDebouncer(RankingDebounce),
		ctx:          sessCtx,
		cancel:       cancel,
	}

	s.globe = NewGlobe(logger, cfg.Countries, s.handleIntent)
	s.view = NewCatalogView(catalog, s.pageChanged)
	s.globe.SetPage(s.view.Visible())
	s.store = NewSelectionStore(logger, catalog.NameAt, s.focusChanged)
	s.chat = NewChatSync(logger, roomCode, cfg.Backend, s.messagesChanged)

	roomOpts := RoomChannelOptions(cfg.Backend, logger, cfg.PollInterval)
	fetchRoom := roomOpts.Fetch
	roomOpts.Fetch = func(ctx context.Context, code string) (types.Room, error) {
		room, err := fetchRoom(ctx, code)
		if errors.Is(err, ErrNotFound) {
			s.terminate(ReasonRoomDeleted)
		}
		return room, err
	}

	var err error
	s.roomCh, err = OpenChannel(ctx, roomCode, roomOpts, s.roomSnapshot, s.roomChange)
	if err != nil {
		cancel()
		return nil, err
	}

	s.msgCh, err = OpenChannel(ctx, roomCode, MessageChannelOptions(cfg.Backend, logger, cfg.PollInterval),
		s.chat.ApplySnapshot, s.messageChange)
	if err != nil {
		s.roomCh.Close()
		cancel()
		return nil, err
	}

	s.mu.Lock()
	s.mounted = true
	s.mu.Unlock()

	return s, nil
}

func (s *Session) RoomCode() string {
	return s.roomCode
}

// SetUser updates the signed in user without remounting.
func (s *Session) SetUser(userId string) {
	s.userId.Set(userId)
	if room, ok := s.store.Room(); ok {
		s.isController.Set(room.ControllerId == userId)
	}
}

func (s *Session) IsController() bool {
	return s.isController.Get()
}

func (s *Session) Focus() Focus {
	return s.store.Focus()
}

func (s *Session) Room() (types.Room, bool) {
	return s.store.Room()
}

func (s *Session) Page() Page {
	return s.view.Visible()
}

func (s *Session) Camera() Camera {
	return s.globe.Camera()
}

func (s *Session) Markers() []Marker {
	return s.globe.Markers()
}

func (s *Session) Messages() []ChatEntry {
	return s.chat.Entries()
}

func (s *Session) Draft() string {
	return s.chat.Draft()
}

func (s *Session) SetDraft(text string) {
	s.chat.SetDraft(text)
}

// LastActivity is the time the focus last changed.
func (s *Session) LastActivity() time.Time {
	return s.lastActivity.Get()
}

// AuthorName resolves the display name of a message author.
func (s *Session) AuthorName(ctx context.Context, userId string) string {
	return s.names.Resolve(ctx, userId)
}

func (s *Session) NextPage() {
	s.view.NextPage()
}

func (s *Session) PrevPage() {
	s.view.PrevPage()
}

// ClickCountry handles a click on a country polygon.
func (s *Session) ClickCountry(name string) error {
	if !s.globe.ClickCountry(name) {
		return ErrIneligibleCountry
	}
	return nil
}

// SelectOpportunity confirms the opportunity with the given id from the
// visible page or the wider catalog.
func (s *Session) SelectOpportunity(id string) error {
	o, ok := s.findOpportunity(id)
	if !ok {
		return fmt.Errorf("opportunity %q: %w", id, ErrNotFound)
	}
	s.globe.ClickTile(o)
	s.globe.SelectTile(o)
	return nil
}

// Back leaves an opportunity focus.
func (s *Session) Back(ctx context.Context) error {
	focus := s.store.Focus()
	if focus.Kind != FocusOpportunity {
		return nil
	}
	return s.roomCh.Send(ctx, focus.Back().Selection(s.roomCode))
}

// SendMessage posts text to the room chat and schedules a ranking refresh.
func (s *Session) SendMessage(ctx context.Context, text string) (types.Message, error) {
	msg, err := s.chat.Send(ctx, s.userId.Get(), text)
	if err != nil {
		return msg, err
	}
	s.scheduleRanking()
	return msg, nil
}

// Unmount closes both channels and cancels pending work. No session event
// fires after it returns. It is safe to call more than once.
func (s *Session) Unmount() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.debounce.Stop()
	s.cancel()
	s.roomCh.Close()
	s.msgCh.Close()
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) roomSnapshot(room types.Room) {
	s.isController.Set(room.ControllerId == s.userId.Get())
	s.store.Apply(room)
}

func (s *Session) roomChange(change types.RowChange) {
	if change.EventType == types.EventDelete {
		s.terminate(ReasonRoomDeleted)
		return
	}

	room, ok := decodeRoom(change.New)
	if !ok {
		s.log.Printf("ignoring malformed room change for %q", change.RoomCode)
		return
	}
	s.roomSnapshot(room)
}

func (s *Session) messageChange(change types.RowChange) {
	s.chat.ApplyChange(change)
	if change.EventType == types.EventInsert {
		s.scheduleRanking()
	}
}

func (s *Session) focusChanged(focus Focus, effects []Effect) {
	for _, e := range effects {
		switch e {
		case EffectCatalogFilter:
			country := ""
			if focus.Kind == FocusCountry {
				country = focus.Country
			}
			s.view.SetCountry(country)
		case EffectIdleReset:
			s.lastActivity.Set(time.Now())
		}
	}

	for _, e := range effects {
		if e == EffectCamera {
			move := s.globe.SetFocus(focus)
			if s.events.OnFocus != nil {
				s.events.OnFocus(focus, move)
			}
			break
		}
	}
}

func (s *Session) messagesChanged(entries []ChatEntry) {
	if s.events.OnMessages != nil && !s.isClosed() {
		s.events.OnMessages(entries)
	}
}

func (s *Session) pageChanged(page Page) {
	if s.globe != nil {
		s.globe.SetPage(page)
	}
	if s.events.OnPage != nil && !s.isClosed() {
		s.events.OnPage(page)
	}
}

// handleIntent turns globe intents into room writes. Country changes are
// reserved to the controller, opportunity picks are open to everyone.
func (s *Session) handleIntent(intent Intent) {
	if s.isClosed() {
		return
	}

	focus := s.store.Focus()
	var sel types.Selection

	switch intent.Kind {
	case IntentCountryClicked:
		if !s.isController.Get() {
			s.reportError(ErrNotController)
			return
		}
		next, ok := focus.ClickCountry(intent.Country)
		if !ok {
			return
		}
		sel = next.Selection(s.roomCode)
	case IntentTileSelected:
		sel = focus.SelectOpportunity(intent.Opportunity).Selection(s.roomCode)
	default:
		return
	}

	if err := s.roomCh.Send(s.ctx, sel); err != nil {
		s.reportError(err)
	}
}

func (s *Session) scheduleRanking() {
	if s.ranker == nil {
		return
	}
	s.debounce.Trigger(s.rank)
}

func (s *Session) rank() {
	if s.isClosed() {
		return
	}

	page := s.view.Unranked()
	if len(page.Items) == 0 {
		return
	}

	ids, err := s.ranker.Rank(s.ctx, s.roomCode, page.Items)
	if err != nil {
		if s.ctx.Err() == nil {
			s.log.Printf("ranking room %q: %v", s.roomCode, err)
		}
		s.view.SetRanking(nil)
		return
	}

	if s.isClosed() {
		return
	}
	s.view.SetRanking(ids)
}

func (s *Session) findOpportunity(id string) (types.Opportunity, bool) {
	for _, o := range s.view.Visible().Items {
		if o.Id == id {
			return o, true
		}
	}
	for _, o := range s.view.catalog.All() {
		if o.Id == id {
			return o, true
		}
	}
	return types.Opportunity{}, false
}

func (s *Session) reportError(err error) {
	if s.events.OnError != nil && !s.isClosed() {
		s.events.OnError(err)
	}
}

// terminate closes the session from inside a sync callback and then reports
// why. It runs once, and not at all after an explicit Unmount.
func (s *Session) terminate(reason string) {
	s.mu.Lock()
	if !s.mounted || s.closed || s.terminated {
		s.mu.Unlock()
		return
	}
	s.terminated = true
	s.mu.Unlock()

	go func() {
		s.Unmount()
		if s.events.OnTerminated != nil {
			s.events.OnTerminated(reason)
		}
	}()
}
