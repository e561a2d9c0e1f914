package loads

import (
	"testing"

	"github.com/maderasur/trozasgo/internal/apperr"
	"github.com/maderasur/trozasgo/internal/models"
	"github.com/maderasur/trozasgo/internal/storage"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	err = db.AutoMigrate(
		&models.User{},
		&models.Transport{},
		&models.Driver{},
		&models.Load{},
		&models.LoadDetail{},
	)
	if err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	seed := []interface{}{
		&models.User{Username: "operador", Password: "x", Name: "Operador", Email: "operador@maderasur.cl", IsActive: true, HasAppAccess: true},
		&models.Transport{Name: "Transportes Bosque Sur", RUT: "765432101", Active: true},
		&models.Driver{RUT: "123456785", Name: "Pedro Soto", TransportID: 1, Active: true},
	}
	for _, row := range seed {
		if err := db.Create(row).Error; err != nil {
			t.Fatalf("failed to seed: %v", err)
		}
	}

	store, err := storage.NewLocalStore(t.TempDir(), "/storage")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return NewService(db, store), db
}

func createLoad(t *testing.T, s *Service, plate string) *models.Load {
	t.Helper()
	load, err := s.Create(1, CreateInput{Plate: plate, DriverID: 1, TransportID: 1})
	if err != nil {
		t.Fatalf("failed to create load: %v", err)
	}
	return load
}

func TestCreateValidation(t *testing.T) {
	s, _ := testService(t)

	if _, err := s.Create(1, CreateInput{Plate: "1234AB", DriverID: 1, TransportID: 1}); apperr.KindOf(err) != apperr.KindValidation {
		t.Errorf("expected validation error for bad plate, got %v", err)
	}
	if _, err := s.Create(1, CreateInput{Plate: "AB1234", DriverID: 99, TransportID: 1}); apperr.KindOf(err) != apperr.KindValidation {
		t.Errorf("expected validation error for unknown driver, got %v", err)
	}

	load := createLoad(t, s, "ab-1234")
	if load.Plate != "AB1234" {
		t.Errorf("plate not normalized: %q", load.Plate)
	}
	if load.Status != models.LoadStatusOpen {
		t.Errorf("new load status = %q, want %q", load.Status, models.LoadStatusOpen)
	}
	if load.TotalLogs != 0 {
		t.Errorf("new load total = %d, want 0", load.TotalLogs)
	}
}

func TestCreateRejectsSecondOpenLoadPerPlate(t *testing.T) {
	s, _ := testService(t)
	createLoad(t, s, "AB1234")

	_, err := s.Create(1, CreateInput{Plate: "AB1234", DriverID: 1, TransportID: 1})
	if apperr.KindOf(err) != apperr.KindConflict {
		t.Fatalf("expected conflict for second open load, got %v", err)
	}

	// A different plate is fine, and so is the same plate once closed
	createLoad(t, s, "BCDF12")
}

func TestReplaceBankDetailsRoundTrip(t *testing.T) {
	s, _ := testService(t)
	load := createLoad(t, s, "AB1234")

	submitted := []Combination{
		{DiameterCM: 24, LengthM: 2.50, Quantity: 10},
		{DiameterCM: 30, LengthM: 5.10, Quantity: 5},
		{DiameterCM: 40, LengthM: 3.80, Quantity: 0},
	}
	totals, err := s.ReplaceBankDetails(1, load.ID, 1, submitted)
	if err != nil {
		t.Fatalf("replace failed: %v", err)
	}
	if totals.BankTotal != 15 || totals.LoadTotal != 15 {
		t.Errorf("totals = %+v, want bank 15 load 15", totals)
	}
	if totals.Combinations != 2 {
		t.Errorf("zero-quantity line stored: combinations = %d, want 2", totals.Combinations)
	}

	view, err := s.Get(1, load.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if len(view.Details) != 2 {
		t.Fatalf("details = %d, want 2", len(view.Details))
	}
	for _, d := range view.Details {
		if d.Quantity == 0 {
			t.Error("zero-quantity row persisted")
		}
	}
	if view.DiameterTotals[24] != 10 || view.DiameterTotals[30] != 5 {
		t.Errorf("diameter totals wrong: %v", view.DiameterTotals)
	}
}

func TestReplaceBankDetailsRejectsCatalogViolations(t *testing.T) {
	s, _ := testService(t)
	load := createLoad(t, s, "AB1234")

	cases := []struct {
		name   string
		combos []Combination
	}{
		{"odd diameter", []Combination{{DiameterCM: 23, LengthM: 2.50, Quantity: 1}}},
		{"diameter below range", []Combination{{DiameterCM: 20, LengthM: 2.50, Quantity: 1}}},
		{"unknown length", []Combination{{DiameterCM: 24, LengthM: 3.00, Quantity: 1}}},
		{"quantity over cap", []Combination{{DiameterCM: 24, LengthM: 2.50, Quantity: 1000}}},
		{"negative quantity", []Combination{{DiameterCM: 24, LengthM: 2.50, Quantity: -1}}},
		{"duplicate combination", []Combination{
			{DiameterCM: 24, LengthM: 2.50, Quantity: 1},
			{DiameterCM: 24, LengthM: 2.50, Quantity: 2},
		}},
	}
	for _, tc := range cases {
		_, err := s.ReplaceBankDetails(1, load.ID, 1, tc.combos)
		if apperr.KindOf(err) != apperr.KindValidation {
			t.Errorf("%s: expected validation error, got %v", tc.name, err)
		}
	}

	if _, err := s.ReplaceBankDetails(1, load.ID, 5, []Combination{{DiameterCM: 24, LengthM: 2.50, Quantity: 1}}); apperr.KindOf(err) != apperr.KindValidation {
		t.Errorf("bank 5: expected validation error, got %v", err)
	}
}

func TestRecalculateTotalIsIdempotent(t *testing.T) {
	s, _ := testService(t)
	load := createLoad(t, s, "AB1234")
	s.ReplaceBankDetails(1, load.ID, 1, []Combination{{DiameterCM: 24, LengthM: 2.50, Quantity: 7}})
	s.ReplaceBankDetails(1, load.ID, 2, []Combination{{DiameterCM: 26, LengthM: 2.00, Quantity: 3}})

	first, err := s.RecalculateTotal(1, load.ID)
	if err != nil {
		t.Fatalf("recalculate failed: %v", err)
	}
	second, err := s.RecalculateTotal(1, load.ID)
	if err != nil {
		t.Fatalf("recalculate failed: %v", err)
	}
	if first != 10 || second != 10 {
		t.Errorf("totals = %d, %d, want 10, 10", first, second)
	}
}

func TestCloseBank(t *testing.T) {
	s, _ := testService(t)
	load := createLoad(t, s, "AB1234")

	// Empty bank cannot close
	_, err := s.CloseBank(1, load.ID, 1, nil, "", GPS{}, "")
	if apperr.KindOf(err) != apperr.KindState {
		t.Fatalf("empty bank: expected state error, got %v", err)
	}

	s.ReplaceBankDetails(1, load.ID, 1, []Combination{{DiameterCM: 24, LengthM: 2.50, Quantity: 10}})

	lat, lng := -36.82, -73.05
	closure, err := s.CloseBank(1, load.ID, 1, []byte("jpegdata"), "jpg", GPS{Lat: &lat, Lng: &lng}, "banco completo")
	if err != nil {
		t.Fatalf("close bank failed: %v", err)
	}
	if closure.BankTotal != 10 || !closure.HasGPS || closure.PhotoURL == "" {
		t.Errorf("closure = %+v", closure)
	}

	// One-shot: second attempt fails
	_, err = s.CloseBank(1, load.ID, 1, nil, "", GPS{}, "")
	if apperr.KindOf(err) != apperr.KindState {
		t.Errorf("reclose: expected state error, got %v", err)
	}

	// Closed bank is immutable
	_, err = s.ReplaceBankDetails(1, load.ID, 1, []Combination{{DiameterCM: 26, LengthM: 2.00, Quantity: 1}})
	if apperr.KindOf(err) != apperr.KindState {
		t.Errorf("modify closed bank: expected state error, got %v", err)
	}

	// Other banks stay editable
	if _, err := s.ReplaceBankDetails(1, load.ID, 2, []Combination{{DiameterCM: 26, LengthM: 2.00, Quantity: 4}}); err != nil {
		t.Errorf("open bank became immutable: %v", err)
	}
}

func TestCloseBankRejectsBadGPS(t *testing.T) {
	s, _ := testService(t)
	load := createLoad(t, s, "AB1234")
	s.ReplaceBankDetails(1, load.ID, 1, []Combination{{DiameterCM: 24, LengthM: 2.50, Quantity: 1}})

	bad := 95.0
	_, err := s.CloseBank(1, load.ID, 1, nil, "", GPS{Lat: &bad, Lng: &bad}, "")
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Errorf("expected validation error for latitude 95, got %v", err)
	}
}

func TestCloseLoad(t *testing.T) {
	s, _ := testService(t)
	load := createLoad(t, s, "AB1234")
	s.ReplaceBankDetails(1, load.ID, 1, []Combination{{DiameterCM: 24, LengthM: 2.50, Quantity: 10}})

	// No closed banks yet
	_, err := s.CloseLoad(1, load.ID)
	if apperr.KindOf(err) != apperr.KindState {
		t.Fatalf("expected state error before any bank closed, got %v", err)
	}

	if _, err := s.CloseBank(1, load.ID, 1, nil, "", GPS{}, ""); err != nil {
		t.Fatalf("close bank failed: %v", err)
	}

	closed, err := s.CloseLoad(1, load.ID)
	if err != nil {
		t.Fatalf("close load failed: %v", err)
	}
	if closed.Status != models.LoadStatusClosed || closed.ClosedAt == nil {
		t.Errorf("load not closed: %+v", closed)
	}
	if closed.TotalLogs != 10 {
		t.Errorf("final total = %d, want 10", closed.TotalLogs)
	}

	// Terminal state
	if _, err := s.CloseLoad(1, load.ID); apperr.KindOf(err) != apperr.KindState {
		t.Errorf("reclose load: expected state error, got %v", err)
	}
	if _, err := s.ReplaceBankDetails(1, load.ID, 2, []Combination{{DiameterCM: 24, LengthM: 2.50, Quantity: 1}}); apperr.KindOf(err) != apperr.KindState {
		t.Errorf("modify closed load: expected state error, got %v", err)
	}

	// Plate frees up for a new load after closure
	if _, err := s.Create(1, CreateInput{Plate: "AB1234", DriverID: 1, TransportID: 1}); err != nil {
		t.Errorf("plate should be reusable after closure: %v", err)
	}
}

func TestOwnershipScoping(t *testing.T) {
	s, db := testService(t)
	db.Create(&models.User{Username: "otro", Password: "x", Name: "Otro", Email: "otro@maderasur.cl", IsActive: true, HasAppAccess: true})
	load := createLoad(t, s, "AB1234")

	if _, err := s.Get(2, load.ID); apperr.KindOf(err) != apperr.KindNotFound {
		t.Errorf("foreign get: expected not found, got %v", err)
	}
	if _, err := s.ReplaceBankDetails(2, load.ID, 1, []Combination{{DiameterCM: 24, LengthM: 2.50, Quantity: 1}}); apperr.KindOf(err) != apperr.KindNotFound {
		t.Errorf("foreign replace: expected not found, got %v", err)
	}
	if _, err := s.CloseLoad(2, load.ID); apperr.KindOf(err) != apperr.KindNotFound {
		t.Errorf("foreign close: expected not found, got %v", err)
	}
}

func TestListFilters(t *testing.T) {
	s, _ := testService(t)
	a := createLoad(t, s, "AB1234")
	createLoad(t, s, "BCDF12")

	s.ReplaceBankDetails(1, a.ID, 1, []Combination{{DiameterCM: 24, LengthM: 2.50, Quantity: 1}})
	s.CloseBank(1, a.ID, 1, nil, "", GPS{}, "")
	s.CloseLoad(1, a.ID)

	all, err := s.List(1, ListFilter{})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if all.Total != 2 {
		t.Errorf("total = %d, want 2", all.Total)
	}

	open, _ := s.List(1, ListFilter{Status: models.LoadStatusOpen})
	if open.Total != 1 || open.Loads[0].Plate != "BCDF12" {
		t.Errorf("open filter wrong: %+v", open)
	}

	byPlate, _ := s.List(1, ListFilter{Search: "ab12"})
	if byPlate.Total != 1 || byPlate.Loads[0].Plate != "AB1234" {
		t.Errorf("search filter wrong: %+v", byPlate)
	}

	foreign, _ := s.List(2, ListFilter{})
	if foreign.Total != 0 {
		t.Errorf("foreign list total = %d, want 0", foreign.Total)
	}
}

func TestGetFullScenario(t *testing.T) {
	s, _ := testService(t)
	load := createLoad(t, s, "AB1234")
	s.ReplaceBankDetails(1, load.ID, 1, []Combination{
		{DiameterCM: 24, LengthM: 2.50, Quantity: 10},
		{DiameterCM: 30, LengthM: 5.10, Quantity: 5},
	})
	s.ReplaceBankDetails(1, load.ID, 2, []Combination{{DiameterCM: 26, LengthM: 2.00, Quantity: 8}})
	s.CloseBank(1, load.ID, 1, []byte("foto"), "jpg", GPS{}, "")

	view, err := s.Get(1, load.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if view.CalcTotal != 23 {
		t.Errorf("calc total = %d, want 23", view.CalcTotal)
	}
	if len(view.Banks) != 2 {
		t.Fatalf("banks = %d, want 2", len(view.Banks))
	}
	if len(view.ClosedBanks) != 1 || view.ClosedBanks[0] != 1 {
		t.Errorf("closed banks = %v, want [1]", view.ClosedBanks)
	}
	if len(view.OpenBanks) != 1 || view.OpenBanks[0] != 2 {
		t.Errorf("open banks = %v, want [2]", view.OpenBanks)
	}
	if view.Banks[0].PhotoURL == "" {
		t.Error("closed bank missing photo url")
	}
	if view.DriverName != "Pedro Soto" {
		t.Errorf("driver name = %q", view.DriverName)
	}
	if view.LengthTotals["2.50"] != 10 || view.LengthTotals["5.10"] != 5 || view.LengthTotals["2.00"] != 8 {
		t.Errorf("length totals wrong: %v", view.LengthTotals)
	}
}
