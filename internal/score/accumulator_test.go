package score_test

import (
	"errors"
	"math"
	"testing"

	"github.com/asrlab/recscore/internal/align"
	"github.com/asrlab/recscore/internal/score"
	"github.com/asrlab/recscore/pkg/decoder"
)

func TestAccumulator_FinalizeRates(t *testing.T) {
	t.Parallel()

	acc := score.NewAccumulator()

	// Two utterances, 5 reference tokens, 1 error total.
	if err := acc.Update(decoder.Word, align.Result{Total: 1, Sub: 1}, 3); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := acc.Update(decoder.Word, align.Result{}, 2); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := acc.AddUtterances(2); err != nil {
		t.Fatalf("AddUtterances: %v", err)
	}

	m, err := acc.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if !m.WER().Defined {
		t.Fatal("WER undefined, want defined")
	}
	if got, want := m.WER().Value, 0.2; math.Abs(got-want) > 1e-12 {
		t.Errorf("WER = %f, want %f", got, want)
	}
	if got, want := m.Word.SubRate.Value, 0.2; math.Abs(got-want) > 1e-12 {
		t.Errorf("word sub rate = %f, want %f", got, want)
	}
	if m.Word.InsRate.Value != 0 || m.Word.DelRate.Value != 0 {
		t.Errorf("word ins/del rates = %f/%f, want 0/0", m.Word.InsRate.Value, m.Word.DelRate.Value)
	}
	if m.Utterances != 2 {
		t.Errorf("utterances = %d, want 2", m.Utterances)
	}
}

func TestAccumulator_ZeroDenominatorIsUndefined(t *testing.T) {
	t.Parallel()

	acc := score.NewAccumulator()

	// Updates that sum reference tokens to zero must not produce a numeric
	// rate at finalize.
	if err := acc.Update(decoder.Word, align.Result{Total: 2, Ins: 2}, 0); err != nil {
		t.Fatalf("Update: %v", err)
	}

	m, err := acc.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if m.WER().Defined {
		t.Errorf("WER = %+v, want undefined", m.WER())
	}
	if m.CER().Defined {
		t.Errorf("CER = %+v, want undefined", m.CER())
	}
	if m.Word.Errors != 2 {
		t.Errorf("word errors = %d, want raw count 2 preserved", m.Word.Errors)
	}
}

func TestAccumulator_SeparateGranularities(t *testing.T) {
	t.Parallel()

	acc := score.NewAccumulator()
	if err := acc.Update(decoder.Word, align.Result{Total: 1, Del: 1}, 4); err != nil {
		t.Fatalf("Update word: %v", err)
	}
	if err := acc.Update(decoder.Char, align.Result{Total: 3, Sub: 3}, 10); err != nil {
		t.Fatalf("Update char: %v", err)
	}

	m, err := acc.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if got, want := m.WER().Value, 0.25; got != want {
		t.Errorf("WER = %f, want %f", got, want)
	}
	if got, want := m.CER().Value, 0.3; got != want {
		t.Errorf("CER = %f, want %f", got, want)
	}
}

func TestAccumulator_UnknownGranularity(t *testing.T) {
	t.Parallel()

	acc := score.NewAccumulator()
	if err := acc.Update(decoder.Granularity("phoneme"), align.Result{}, 1); err == nil {
		t.Error("Update with unknown granularity: got nil error, want error")
	}
}

func TestAccumulator_Oracle(t *testing.T) {
	t.Parallel()

	acc := score.NewAccumulator()
	if err := acc.Update(decoder.Word, align.Result{Total: 2, Sub: 2}, 4); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := acc.UpdateOracle(1, false); err != nil {
		t.Fatalf("UpdateOracle: %v", err)
	}
	if err := acc.UpdateOracle(0, true); err != nil {
		t.Fatalf("UpdateOracle: %v", err)
	}

	m, err := acc.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if got, want := m.OracleWER.Value, 0.25; !m.OracleWER.Defined || got != want {
		t.Errorf("oracle WER = %+v, want defined %f", m.OracleWER, want)
	}
	if got, want := m.OracleHitRate.Value, 0.5; !m.OracleHitRate.Defined || got != want {
		t.Errorf("oracle hit rate = %+v, want defined %f", m.OracleHitRate, want)
	}
}

func TestAccumulator_OracleUndefinedWithoutUpdates(t *testing.T) {
	t.Parallel()

	acc := score.NewAccumulator()
	if err := acc.Update(decoder.Word, align.Result{}, 3); err != nil {
		t.Fatalf("Update: %v", err)
	}
	m, err := acc.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if m.OracleWER.Defined || m.OracleHitRate.Defined {
		t.Errorf("oracle rates = %+v/%+v, want undefined", m.OracleWER, m.OracleHitRate)
	}
}

func TestAccumulator_BinsSortedByKey(t *testing.T) {
	t.Parallel()

	acc := score.NewAccumulator()
	for _, upd := range []struct {
		bin  int
		frac float64
	}{
		{600, 0.5},
		{200, 0.1},
		{600, 0.3},
		{400, 0.0},
	} {
		if err := acc.UpdateBin(upd.bin, upd.frac); err != nil {
			t.Fatalf("UpdateBin: %v", err)
		}
	}

	m, err := acc.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if len(m.Bins) != 3 {
		t.Fatalf("bins = %v, want 3 entries", m.Bins)
	}
	wantBins := []int{200, 400, 600}
	for i, b := range m.Bins {
		if b.Bin != wantBins[i] {
			t.Errorf("bins[%d].Bin = %d, want %d", i, b.Bin, wantBins[i])
		}
	}
	if got, want := m.Bins[2].Mean, 0.4; math.Abs(got-want) > 1e-12 {
		t.Errorf("bin 600 mean = %f, want %f", got, want)
	}
	if m.Bins[2].Count != 2 {
		t.Errorf("bin 600 count = %d, want 2", m.Bins[2].Count)
	}
}

func TestAccumulator_ConsumedByFinalize(t *testing.T) {
	t.Parallel()

	acc := score.NewAccumulator()
	if _, err := acc.Finalize(); err != nil {
		t.Fatalf("first Finalize: %v", err)
	}
	if _, err := acc.Finalize(); !errors.Is(err, score.ErrFinalized) {
		t.Errorf("second Finalize: err = %v, want ErrFinalized", err)
	}
	if err := acc.Update(decoder.Word, align.Result{}, 1); !errors.Is(err, score.ErrFinalized) {
		t.Errorf("Update after Finalize: err = %v, want ErrFinalized", err)
	}
	if err := acc.AddOOV(1); !errors.Is(err, score.ErrFinalized) {
		t.Errorf("AddOOV after Finalize: err = %v, want ErrFinalized", err)
	}
}
