package app

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"acakata/internal/domain"
	"acakata/internal/locale"
	"acakata/internal/puzzle"
	"go.uber.org/zap"
)

// QuestionSource draws round questions and prices correct answers by rank.
type QuestionSource interface {
	Draw(ctx context.Context) domain.Question
	ScoreForRank(rank int) int
}

// PresenceMirror publishes online-set membership outside the process (best effort).
type PresenceMirror interface {
	Joined(ctx context.Context, player string) error
	Left(ctx context.Context, player string) error
}

type RoomConfig struct {
	TimerLimit       int
	ChatLimit        int
	DefaultName      string
	MaxNameLength    int
	MaxMessageLength int
	CreditTimeout    time.Duration
}

func DefaultRoomConfig() RoomConfig {
	return RoomConfig{
		TimerLimit:       15,
		ChatLimit:        40,
		DefaultName:      "anonim",
		MaxNameLength:    32,
		MaxMessageLength: 280,
		CreditTimeout:    5 * time.Second,
	}
}

type RoomOption func(*Room)

// WithPresence mirrors online-set changes to m.
func WithPresence(m PresenceMirror) RoomOption {
	return func(r *Room) { r.presence = m }
}

// SubmitResult describes what a submitted chat line turned into.
type SubmitResult struct {
	Posted  bool
	Correct bool
	Points  int
	Message domain.ChatMessage
}

// Room is the single shared game room. Every mutation happens under mu and is
// followed by one broadcast naming the sub-collections it touched.
type Room struct {
	cfg      RoomConfig
	source   QuestionSource
	scores   *Scorekeeper
	notices  *locale.Notifier
	presence PresenceMirror
	log      *zap.Logger

	mu          sync.Mutex
	question    domain.Question
	answers     []domain.AnswerAttempt
	messages    []domain.ChatMessage
	leaderboard []domain.LeaderboardEntry
	timer       int
	online      map[string]int    // name -> live sessions using it
	sessions    map[string]string // session id -> name
	subscribers map[chan domain.Update]struct{}
	closed      bool

	// presenceMu keeps mirror calls in the order membership changed.
	presenceMu sync.Mutex
	// refreshMu orders leaderboard re-reads so an older read never lands last.
	refreshMu sync.Mutex
	credits   sync.WaitGroup
}

func NewRoom(ctx context.Context, cfg RoomConfig, source QuestionSource, scores *Scorekeeper, notices *locale.Notifier, log *zap.Logger, opts ...RoomOption) *Room {
	if log == nil {
		log = zap.NewNop()
	}
	if notices == nil {
		notices = locale.New("")
	}
	r := &Room{
		cfg:         cfg,
		source:      source,
		scores:      scores,
		notices:     notices,
		log:         log,
		question:    source.Draw(ctx),
		online:      make(map[string]int),
		sessions:    make(map[string]string),
		subscribers: make(map[chan domain.Update]struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SubmitMessage posts rawText from player. A correct first answer this round is
// recorded, credited, and shown as a notice instead of the answer itself.
func (r *Room) SubmitMessage(player, rawText string) SubmitResult {
	if strings.TrimSpace(rawText) == "" {
		return SubmitResult{}
	}
	text := truncateRunes(rawText, r.cfg.MaxMessageLength)

	r.mu.Lock()
	result := SubmitResult{Posted: true}
	if puzzle.Normalize(text) == r.question.Answer && !puzzle.AnsweredBefore(r.answers, player) {
		rank := len(r.answers)
		r.answers = append(r.answers, domain.AnswerAttempt{Player: player, Rank: rank})
		result.Correct = true
		result.Points = r.source.ScoreForRank(rank)
		text = r.notices.Correct(result.Points)
	}
	result.Message = domain.ChatMessage{Player: player, Text: text}
	r.messages = append(r.messages, result.Message)
	if over := len(r.messages) - r.cfg.ChatLimit; over > 0 {
		r.messages = append([]domain.ChatMessage(nil), r.messages[over:]...)
	}
	if result.Correct {
		// Registered before unlocking so WaitCredits never misses it.
		r.credits.Add(1)
	}
	r.broadcastLocked(domain.ChangeMessages)
	r.mu.Unlock()

	if result.Correct {
		go r.credit(player, result.Points)
	}
	return result
}

// credit persists points on a detached context so a disconnect cannot cancel it.
func (r *Room) credit(player string, points int) {
	defer r.credits.Done()
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.CreditTimeout)
	defer cancel()

	if err := r.scores.Credit(ctx, player, points); err != nil {
		r.log.Error("leaderboard credit lost", zap.String("player", player), zap.Int("delta", points), zap.Error(err))
		return
	}
	_ = r.RefreshLeaderboard(ctx)
}

// RefreshLeaderboard re-reads the whole leaderboard from the store and broadcasts it.
func (r *Room) RefreshLeaderboard(ctx context.Context) error {
	r.refreshMu.Lock()
	defer r.refreshMu.Unlock()

	rows, err := r.scores.Load(ctx)
	if err != nil {
		r.log.Warn("leaderboard refresh failed", zap.Error(err))
		return err
	}
	r.mu.Lock()
	r.leaderboard = rows
	r.broadcastLocked(domain.ChangeLeaderboard)
	r.mu.Unlock()
	return nil
}

// WaitCredits blocks until every in-flight credit has finished or ctx ends.
func (r *Room) WaitCredits(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.credits.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Tick advances the round clock by one second, rolling over at the limit.
func (r *Room) Tick(ctx context.Context) (rolledOver bool) {
	r.mu.Lock()
	r.timer++
	due := r.timer >= r.cfg.TimerLimit
	if !due {
		r.broadcastLocked(domain.ChangeTimer)
	}
	r.mu.Unlock()

	if due {
		r.Rollover(ctx)
	}
	return due
}

// Rollover clears the answers, resets the clock and installs a fresh question,
// regardless of how the round went.
func (r *Room) Rollover(ctx context.Context) {
	next := r.source.Draw(ctx)

	r.mu.Lock()
	r.timer = 0
	r.answers = nil
	r.question = next
	r.broadcastLocked(domain.ChangeTimer | domain.ChangeQuestion)
	r.mu.Unlock()
}

// ValidateName trims a proposed display name and enforces the length limit.
func (r *Room) ValidateName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", domain.ErrEmptyName
	}
	if utf8.RuneCountInString(name) > r.cfg.MaxNameLength {
		return "", domain.ErrNameTooLong
	}
	return name, nil
}

// DefaultName is the name given to sessions that connect without one.
func (r *Room) DefaultName() string {
	return r.cfg.DefaultName
}

// SetOnline attaches a session to player. Calling it again for the same session
// moves the session to the new name; repeating the same name is a no-op.
func (r *Room) SetOnline(sessionID, player string) {
	r.presenceMu.Lock()
	defer r.presenceMu.Unlock()

	r.mu.Lock()
	var joined, left string
	if current, ok := r.sessions[sessionID]; ok {
		if current == player {
			r.mu.Unlock()
			return
		}
		left = r.releaseLocked(current)
	}
	r.sessions[sessionID] = player
	r.online[player]++
	if r.online[player] == 1 {
		joined = player
	}
	if joined != "" || left != "" {
		r.broadcastLocked(domain.ChangeOnline | domain.ChangeLeaderboard)
	}
	r.mu.Unlock()

	r.mirror(left, joined)
}

// SetOffline detaches a session. Unknown or already-detached sessions are ignored.
func (r *Room) SetOffline(sessionID string) {
	r.presenceMu.Lock()
	defer r.presenceMu.Unlock()

	r.mu.Lock()
	current, ok := r.sessions[sessionID]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.sessions, sessionID)
	left := r.releaseLocked(current)
	if left != "" {
		r.broadcastLocked(domain.ChangeOnline | domain.ChangeLeaderboard)
	}
	r.mu.Unlock()

	r.mirror(left, "")
}

// Rename validates newName and moves the session to it. Earlier chat lines and
// leaderboard rows stay under the old name.
func (r *Room) Rename(sessionID, newName string) (string, error) {
	name, err := r.ValidateName(newName)
	if err != nil {
		return "", err
	}
	r.mu.Lock()
	_, ok := r.sessions[sessionID]
	r.mu.Unlock()
	if !ok {
		return "", domain.ErrSessionNotFound
	}
	r.SetOnline(sessionID, name)
	return name, nil
}

// releaseLocked drops one session's hold on name and returns name if it went offline.
func (r *Room) releaseLocked(name string) string {
	r.online[name]--
	if r.online[name] > 0 {
		return ""
	}
	delete(r.online, name)
	return name
}

func (r *Room) mirror(left, joined string) {
	if r.presence == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if left != "" {
		if err := r.presence.Left(ctx, left); err != nil {
			r.log.Warn("presence mirror leave failed", zap.String("player", left), zap.Error(err))
		}
	}
	if joined != "" {
		if err := r.presence.Joined(ctx, joined); err != nil {
			r.log.Warn("presence mirror join failed", zap.String("player", joined), zap.Error(err))
		}
	}
}

// Snapshot returns a copy of the current room state.
func (r *Room) Snapshot() domain.RoomSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// Question returns the active question, answer included.
func (r *Room) Question() domain.Question {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.question
}

// Answers returns this round's correct answers in rank order.
func (r *Room) Answers() []domain.AnswerAttempt {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.AnswerAttempt(nil), r.answers...)
}

// Subscribe returns a channel of room updates, starting with a full snapshot.
// The caller must invoke the returned cancel function to avoid leaks.
func (r *Room) Subscribe() (<-chan domain.Update, func()) {
	ch := make(chan domain.Update, 8)

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	r.subscribers[ch] = struct{}{}
	ch <- domain.Update{Changes: domain.ChangeAll, Snapshot: r.snapshotLocked()}
	r.mu.Unlock()

	cancel := func() {
		r.mu.Lock()
		if _, ok := r.subscribers[ch]; ok {
			delete(r.subscribers, ch)
			close(ch)
		}
		r.mu.Unlock()
	}
	return ch, cancel
}

// Close ends every subscription; later Subscribe calls get a closed channel.
func (r *Room) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	for ch := range r.subscribers {
		delete(r.subscribers, ch)
		close(ch)
	}
}

func (r *Room) broadcastLocked(changes domain.Change) {
	if len(r.subscribers) == 0 {
		return
	}
	update := domain.Update{Changes: changes, Snapshot: r.snapshotLocked()}
	for ch := range r.subscribers {
		select {
		case ch <- update:
		default:
			// Full buffer: fold the oldest pending update into this one so no
			// changed sub-collection goes unreported.
			merged := update
			select {
			case stale := <-ch:
				merged.Changes |= stale.Changes
			default:
			}
			ch <- merged
		}
	}
}

func (r *Room) snapshotLocked() domain.RoomSnapshot {
	online := make([]string, 0, len(r.online))
	for name := range r.online {
		online = append(online, name)
	}
	sort.Strings(online)

	board := make([]domain.RankedEntry, 0, len(r.leaderboard))
	for _, row := range r.leaderboard {
		_, isOnline := r.online[row.Player]
		board = append(board, domain.RankedEntry{Player: row.Player, Score: row.Score, Online: isOnline})
	}
	messages := make([]domain.ChatMessage, len(r.messages))
	copy(messages, r.messages)

	sort.SliceStable(board, func(i, j int) bool {
		if board[i].Score != board[j].Score {
			return board[i].Score > board[j].Score
		}
		return board[i].Player < board[j].Player
	})

	return domain.RoomSnapshot{
		Question:    r.question,
		Timer:       r.timer,
		Remaining:   r.cfg.TimerLimit - r.timer,
		Leaderboard: board,
		Online:      online,
		Messages:    messages,
	}
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}
