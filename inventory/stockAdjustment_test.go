package inventory

import (
	"testing"

	"github.com/mmdatafocus/sales_recon/models"
)

func flags(ms []models.LedgerMutation) map[models.RowID]bool {
	out := map[models.RowID]bool{}
	for _, m := range ms {
		out[m.RowID] = m.Value.(bool)
	}
	return out
}

func TestAdjustToCountMarksSurplusSoldFromTop(t *testing.T) {
	rows := ledgerOf(unit(1, "F"), soldUnit(2, "F", ""), unit(3, "F"), unit(4, "F"), unit(5, "G"))
	res := AdjustToCount(rows, "F", 1)
	if res.Status != models.AdjustmentStatusOK || res.Unsold != 3 {
		t.Fatalf("got %+v", res)
	}
	f := flags(res.Mutations)
	if len(f) != 2 || !f[1] || !f[3] {
		t.Fatalf("expected rows 1 and 3 to become sold, got %v", f)
	}
	if res.Message != "Trueに変更: 2件" {
		t.Fatalf("message=%q", res.Message)
	}
}

func TestAdjustToCountRestoresLatestSoldRows(t *testing.T) {
	rows := ledgerOf(soldUnit(1, "F", ""), soldUnit(2, "F", ""), unit(3, "F"), soldUnit(4, "F", ""))
	res := AdjustToCount(rows, "F", 3)
	f := flags(res.Mutations)
	if res.Status != models.AdjustmentStatusOK || len(f) != 2 {
		t.Fatalf("got %+v", res)
	}
	if v, ok := f[4]; !ok || v {
		t.Fatalf("row 4 should flip back first: %v", f)
	}
	if v, ok := f[2]; !ok || v {
		t.Fatalf("row 2 should flip back second: %v", f)
	}
}

func TestAdjustToCountCapsAtAvailableSoldRows(t *testing.T) {
	rows := ledgerOf(soldUnit(1, "F", ""), unit(2, "F"))
	res := AdjustToCount(rows, "F", 5)
	if len(res.Mutations) != 1 || res.Message != "Falseに変更: 1件" {
		t.Fatalf("got %+v", res)
	}
}

func TestAdjustToCountSkipAndError(t *testing.T) {
	rows := ledgerOf(unit(1, "F"), soldUnit(2, "F", ""))
	if res := AdjustToCount(rows, "F", 1); res.Status != models.AdjustmentStatusSkip || len(res.Mutations) != 0 {
		t.Fatalf("got %+v", res)
	}
	if res := AdjustToCount(rows, "missing", 1); res.Status != models.AdjustmentStatusError {
		t.Fatalf("got %+v", res)
	}
	if res := AdjustToCount(rows, "F", -1); res.Status != models.AdjustmentStatusError {
		t.Fatalf("got %+v", res)
	}
}
