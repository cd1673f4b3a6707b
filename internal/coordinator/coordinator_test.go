package coordinator

import (
	"encoding/json"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/openvtt/tabletop/internal/models"
	"github.com/openvtt/tabletop/internal/protocol"
	"github.com/openvtt/tabletop/internal/render"
	"github.com/openvtt/tabletop/internal/table"
	"github.com/openvtt/tabletop/internal/testkit/renderfakes"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []protocol.Envelope
	err  error
}

func (s *fakeSender) Send(env protocol.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, env)
	return nil
}

func (s *fakeSender) envelopes() []protocol.Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]protocol.Envelope, len(s.sent))
	copy(out, s.sent)
	return out
}

type fixture struct {
	registry *table.Registry
	engine   *renderfakes.Engine
	sender   *fakeSender
	clock    *clockwork.FakeClock
	coord    *Coordinator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	registry := table.NewRegistry()
	registry.CreateTable("t1", "Dungeon", 2000, 1500)
	engine := renderfakes.New()
	sender := &fakeSender{}
	clock := clockwork.NewFakeClock()
	coord := New(registry, render.NewBridge(engine), sender, clock, DefaultConfig())
	t.Cleanup(coord.Close)
	return &fixture{registry: registry, engine: engine, sender: sender, clock: clock, coord: coord}
}

func baseSprite() models.Sprite {
	return models.Sprite{
		ID: "s1", X: 100, Y: 200, Scale: 1,
		HP: 50, MaxHP: 50, AC: 18,
		Texture: "goblin.png", CharacterID: "char-1",
	}
}

func f64(v float64) *float64 { return &v }
func iptr(v int) *int        { return &v }

func TestFieldLevelMergePreservesUnrelatedFields(t *testing.T) {
	fx := newFixture(t)
	fx.coord.AddSprite("t1", baseSprite())

	if !fx.coord.UpdateSprite("t1", "s1", protocol.SpriteUpdate{X: f64(150), Y: f64(250)}) {
		t.Fatal("update failed")
	}

	got, ok := fx.coord.Sprite("t1", "s1")
	if !ok {
		t.Fatal("sprite missing")
	}
	if got.X != 150 || got.Y != 250 {
		t.Errorf("position = (%v, %v), want (150, 250)", got.X, got.Y)
	}
	if got.HP != 50 || got.AC != 18 || got.CharacterID != "char-1" {
		t.Errorf("unrelated fields changed: hp=%d ac=%d character=%q", got.HP, got.AC, got.CharacterID)
	}
	if got.Texture != "goblin.png" {
		t.Errorf("texture changed: %q", got.Texture)
	}
}

func TestInboundUpdateMergesFieldLevel(t *testing.T) {
	fx := newFixture(t)
	fx.coord.AddSprite("t1", baseSprite())

	env, _ := protocol.NewEnvelope(protocol.TypeSpriteUpdate, protocol.SpriteUpdatePayload{
		SpriteID:   "s1",
		TableID:    "t1",
		UpdateType: "position",
		Data:       protocol.SpriteUpdate{X: f64(300)},
	})
	fx.coord.HandleMessage(env)

	got, _ := fx.coord.Sprite("t1", "s1")
	if got.X != 300 {
		t.Errorf("x = %v, want 300", got.X)
	}
	if got.Y != 200 || got.HP != 50 || got.CharacterID != "char-1" {
		t.Errorf("inbound merge touched unrelated fields: %+v", got)
	}
	if st, _ := fx.coord.SpriteStatus("s1"); st != models.SyncSynced {
		t.Errorf("status = %q, want synced", st)
	}
}

func TestHPClampOnRepeatedAdjust(t *testing.T) {
	fx := newFixture(t)
	sprite := baseSprite()
	sprite.HP = 1
	fx.coord.AddSprite("t1", sprite)

	fx.coord.AdjustHP("t1", "s1", -3)
	fx.coord.AdjustHP("t1", "s1", -3)
	got, _ := fx.coord.Sprite("t1", "s1")
	if got.HP != 0 {
		t.Errorf("hp = %d, want 0 after repeated decrement", got.HP)
	}

	for i := 0; i < 30; i++ {
		fx.coord.AdjustHP("t1", "s1", 5)
	}
	got, _ = fx.coord.Sprite("t1", "s1")
	if got.HP != 50 {
		t.Errorf("hp = %d, want clamp at maxHp 50", got.HP)
	}
}

func TestSendFailureKeepsOptimisticState(t *testing.T) {
	fx := newFixture(t)
	fx.sender.err = errors.New("socket gone")

	if !fx.coord.AddSprite("t1", baseSprite()) {
		t.Fatal("add rejected despite optimistic contract")
	}

	if _, ok := fx.coord.Sprite("t1", "s1"); !ok {
		t.Fatal("optimistic sprite rolled back on transport failure")
	}
	if st, _ := fx.coord.SpriteStatus("s1"); st != models.SyncError {
		t.Errorf("status = %q, want error", st)
	}
	if fx.coord.LastError() == nil {
		t.Error("transport failure not reported")
	}
}

func TestUnknownInboundMessageIsNoop(t *testing.T) {
	fx := newFixture(t)
	fx.coord.AddSprite("t1", baseSprite())
	before, _ := fx.coord.Snapshot("t1")
	fx.coord.ClearError()

	fx.coord.HandleMessage(protocol.Envelope{
		Type: "vibe_check",
		Data: json.RawMessage(`{"intensity":11}`),
	})

	after, _ := fx.coord.Snapshot("t1")
	if !reflect.DeepEqual(before, after) {
		t.Errorf("state changed by unknown message:\nbefore %+v\nafter  %+v", before, after)
	}
	if fx.coord.LastError() != nil {
		t.Errorf("unknown message set error: %v", fx.coord.LastError())
	}
}

func TestMalformedInboundMessageIsNoop(t *testing.T) {
	fx := newFixture(t)
	fx.coord.AddSprite("t1", baseSprite())
	before, _ := fx.coord.Snapshot("t1")

	fx.coord.HandleMessage(protocol.Envelope{
		Type: protocol.TypeSpriteUpdate,
		Data: json.RawMessage(`{"sprite_id":`),
	})

	after, _ := fx.coord.Snapshot("t1")
	if !reflect.DeepEqual(before, after) {
		t.Error("state changed by malformed message")
	}
}

func TestSpriteRejectRevertsOptimisticState(t *testing.T) {
	fx := newFixture(t)
	fx.coord.AddSprite("t1", baseSprite())
	fx.coord.UpdateSprite("t1", "s1", protocol.SpriteUpdate{X: f64(999)})

	authoritative := baseSprite()
	env, _ := protocol.NewEnvelope(protocol.TypeSpriteReject, protocol.SpriteRejectPayload{
		SpriteID: "s1",
		TableID:  "t1",
		Reason:   "position out of bounds",
		Sprite:   authoritative,
	})
	fx.coord.HandleMessage(env)

	got, _ := fx.coord.Sprite("t1", "s1")
	if got.X != 100 {
		t.Errorf("x = %v, want reverted 100", got.X)
	}
	if st, _ := fx.coord.SpriteStatus("s1"); st != models.SyncError {
		t.Errorf("status = %q, want error after rejection", st)
	}
}

func TestTableDataReplacesTableAndSprites(t *testing.T) {
	fx := newFixture(t)
	fx.coord.AddSprite("t1", baseSprite())

	incoming := models.NewTable("t1", "Dungeon Level 2", 3000, 3000)
	env, _ := protocol.NewEnvelope(protocol.TypeTableData, protocol.TableDataPayload{
		Table:   incoming,
		Sprites: []models.Sprite{{ID: "s9", X: 5, Y: 5, HP: 10, MaxHP: 10}},
	})
	fx.coord.HandleMessage(env)

	tbl, ok := fx.registry.Get("t1")
	if !ok {
		t.Fatal("table missing after table_data")
	}
	if tbl.Name != "Dungeon Level 2" || tbl.SyncStatus != models.SyncSynced {
		t.Errorf("table = %+v", tbl)
	}
	if tbl.LastSyncTime == nil {
		t.Error("last sync time not set")
	}

	if _, ok := fx.coord.Sprite("t1", "s1"); ok {
		t.Error("old sprite survived full table replace")
	}
	if _, ok := fx.coord.Sprite("t1", "s9"); !ok {
		t.Error("incoming sprite missing")
	}
}

func TestAddSpriteUnknownTable(t *testing.T) {
	fx := newFixture(t)
	if fx.coord.AddSprite("nope", baseSprite()) {
		t.Error("add succeeded for unknown table")
	}
	if fx.coord.UpdateSprite("t1", "ghost", protocol.SpriteUpdate{X: f64(1)}) {
		t.Error("update succeeded for unknown sprite")
	}
	if fx.coord.RemoveSprite("t1", "ghost") {
		t.Error("remove succeeded for unknown sprite")
	}
}

func TestSyncTableDataNotReady(t *testing.T) {
	fx := newFixture(t)
	fx.engine.SetReady(false)

	if fx.coord.SyncTableData("t1") {
		t.Fatal("sync reported success with engine not ready")
	}
	if !errors.Is(fx.coord.LastError(), render.ErrNotReady) {
		t.Errorf("error = %v, want ErrNotReady", fx.coord.LastError())
	}

	// Recoverable: caller retries once the engine comes up.
	fx.engine.SetReady(true)
	fx.coord.ClearError()
	if !fx.coord.SyncTableData("t1") {
		t.Fatal("retry failed with ready engine")
	}
	if fx.coord.LastError() != nil {
		t.Errorf("unexpected error: %v", fx.coord.LastError())
	}
}

func TestLinkCharacterCopiesSnapshotNotBinding(t *testing.T) {
	fx := newFixture(t)
	sprite := baseSprite()
	sprite.CharacterID = ""
	sprite.HP, sprite.MaxHP, sprite.AC = 1, 1, 1
	fx.coord.AddSprite("t1", sprite)

	char := models.Character{
		ID:   "char-7",
		Name: "Vex",
		Stats: models.CharacterStats{
			HP: models.HitPoints{Current: 30, Max: 40, Temp: 5},
			AC: 16,
		},
	}
	if !fx.coord.LinkCharacter("t1", "s1", char) {
		t.Fatal("link failed")
	}

	got, _ := fx.coord.Sprite("t1", "s1")
	if got.CharacterID != "char-7" || got.HP != 30 || got.MaxHP != 40 || got.TempHP != 5 || got.AC != 16 {
		t.Errorf("snapshot not copied: %+v", got)
	}

	// Editing the character afterwards must not propagate on its own.
	char.Stats.HP.Current = 5
	got, _ = fx.coord.Sprite("t1", "s1")
	if got.HP != 30 {
		t.Error("character edit propagated without explicit re-sync")
	}

	// An explicit re-sync copies the new snapshot.
	if !fx.coord.SyncCharacterStats("t1", "s1", char) {
		t.Fatal("re-sync failed")
	}
	got, _ = fx.coord.Sprite("t1", "s1")
	if got.HP != 5 {
		t.Errorf("hp = %d, want re-synced 5", got.HP)
	}

	// Re-sync against a different character is refused.
	other := models.Character{ID: "char-8"}
	if fx.coord.SyncCharacterStats("t1", "s1", other) {
		t.Error("re-sync accepted a different character")
	}
}

func TestStatusLatticeThroughLifecycle(t *testing.T) {
	fx := newFixture(t)
	fx.coord.AddSprite("t1", baseSprite())

	if st, _ := fx.coord.SpriteStatus("s1"); st != models.SyncSyncing {
		t.Errorf("status after add = %q, want syncing", st)
	}

	ack, _ := protocol.NewEnvelope(protocol.TypeSpriteAdd, protocol.SpriteAddPayload{
		TableID: "t1",
		Sprite:  baseSprite(),
	})
	fx.coord.HandleMessage(ack)
	if st, _ := fx.coord.SpriteStatus("s1"); st != models.SyncSynced {
		t.Errorf("status after ack = %q, want synced", st)
	}

	fx.coord.UpdateSprite("t1", "s1", protocol.SpriteUpdate{AC: iptr(20)})
	if st, _ := fx.coord.SpriteStatus("s1"); st != models.SyncSyncing {
		t.Errorf("status after new edit = %q, want syncing", st)
	}
}

func TestObserverReceivesEvents(t *testing.T) {
	fx := newFixture(t)

	var mu sync.Mutex
	var got []Event
	fx.coord.Subscribe(func(ev Event) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, ev)
	})

	fx.coord.AddSprite("t1", baseSprite())
	fx.coord.UpdateSprite("t1", "s1", protocol.SpriteUpdate{X: f64(1)})
	fx.coord.RemoveSprite("t1", "s1")

	mu.Lock()
	defer mu.Unlock()
	want := []EventKind{EventSpriteAdded, EventSpriteUpdated, EventSpriteRemoved}
	if len(got) != len(want) {
		t.Fatalf("events = %d, want %d", len(got), len(want))
	}
	for i, kind := range want {
		if got[i].Kind != kind {
			t.Errorf("event[%d] = %q, want %q", i, got[i].Kind, kind)
		}
	}
}

func TestDebouncedPositionSendsOnce(t *testing.T) {
	fx := newFixture(t)
	fx.coord.AddSprite("t1", baseSprite())
	addSends := len(fx.sender.envelopes())

	// A drag: many local moves inside one debounce window.
	for i := 1; i <= 10; i++ {
		if !fx.coord.UpdateSpritePosition("t1", "s1", float64(100+i*10), 200) {
			t.Fatal("move failed")
		}
	}

	// Local state reflects the drag immediately, before any send.
	got, _ := fx.coord.Sprite("t1", "s1")
	if got.X != 200 {
		t.Errorf("local x = %v, want 200", got.X)
	}
	if len(fx.sender.envelopes()) != addSends {
		t.Fatal("position message sent before debounce window elapsed")
	}

	fx.clock.BlockUntil(1)
	fx.clock.Advance(DefaultConfig().DebounceWindow)

	waitFor(t, func() bool { return len(fx.sender.envelopes()) == addSends+1 })

	envs := fx.sender.envelopes()
	last := envs[len(envs)-1]
	if last.Type != protocol.TypeSpriteUpdate {
		t.Fatalf("sent type = %q", last.Type)
	}
	parsed, err := protocol.ParsePayload(last)
	if err != nil {
		t.Fatal(err)
	}
	payload := parsed.(protocol.SpriteUpdatePayload)
	if payload.UpdateType != "position" || payload.Data.X == nil || *payload.Data.X != 200 {
		t.Errorf("coalesced payload = %+v, want final x=200", payload)
	}
}

func TestCloseCancelsPendingSends(t *testing.T) {
	fx := newFixture(t)
	fx.coord.AddSprite("t1", baseSprite())
	sends := len(fx.sender.envelopes())

	fx.coord.UpdateSpritePosition("t1", "s1", 500, 500)
	fx.coord.Close()
	fx.clock.Advance(time.Second)

	if got := len(fx.sender.envelopes()); got != sends {
		t.Errorf("debounced send fired after Close: %d sends, want %d", got, sends)
	}
}

// waitFor polls for a condition driven by a goroutine, failing after a real
// two-second deadline.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
