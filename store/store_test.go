package store

import (
	"path/filepath"
	"testing"

	"github.com/crobine/evosample/sample"
)

func TestSaveLoad(tst *testing.T) {
	path := filepath.Join(tst.TempDir(), "checkpoint.db")
	s, err := Open(path, Fingerprint("length", "3"))
	if err != nil {
		tst.Fatal("Error opening store", err)
	}
	defer s.Close()

	results := []sample.Result{
		{sample.MetricScoreDif: 2, sample.MetricDuration: 0.25},
		{sample.MetricScoreDif: 0, sample.MetricDuration: 0.5},
	}
	if err := s.Save(5, results); err != nil {
		tst.Fatal("Error saving results", err)
	}

	loaded, err := s.Load(5)
	if err != nil {
		tst.Fatal("Error loading results", err)
	}
	if len(loaded) != 2 {
		tst.Fatal("Wrong number of results, got:", len(loaded))
	}
	if loaded[0][sample.MetricScoreDif] != 2 || loaded[1][sample.MetricDuration] != 0.5 {
		tst.Error("Results corrupted in round trip:", loaded)
	}
}

func TestLoadMissing(tst *testing.T) {
	path := filepath.Join(tst.TempDir(), "checkpoint.db")
	s, err := Open(path, Fingerprint("length", "3"))
	if err != nil {
		tst.Fatal("Error opening store", err)
	}
	defer s.Close()

	loaded, err := s.Load(7)
	if err != nil {
		tst.Fatal("Error loading results", err)
	}
	if loaded != nil {
		tst.Error("Expected no results, got:", loaded)
	}
}

func TestFingerprintIsolation(tst *testing.T) {
	path := filepath.Join(tst.TempDir(), "checkpoint.db")
	s1, err := Open(path, Fingerprint("length"))
	if err != nil {
		tst.Fatal("Error opening store", err)
	}
	if err := s1.Save(1, []sample.Result{{sample.MetricDuration: 1}}); err != nil {
		tst.Fatal("Error saving results", err)
	}
	s1.Close()

	// A different configuration must not see the checkpoint.
	s2, err := Open(path, Fingerprint("event_depth"))
	if err != nil {
		tst.Fatal("Error opening store", err)
	}
	defer s2.Close()
	loaded, err := s2.Load(1)
	if err != nil {
		tst.Fatal("Error loading results", err)
	}
	if loaded != nil {
		tst.Error("Checkpoint leaked across configurations:", loaded)
	}
}

func TestFingerprintCoversBinaries(tst *testing.T) {
	// Swapping out a binary must invalidate the checkpoint: results
	// computed by a different reconciler are not reusable.
	path := filepath.Join(tst.TempDir(), "checkpoint.db")
	s1, err := Open(path, Fingerprint("500", "length", "scoredif", "sim-v1", "rec-v1"))
	if err != nil {
		tst.Fatal("Error opening store", err)
	}
	if err := s1.Save(3, []sample.Result{{sample.MetricScoreDif: 1}}); err != nil {
		tst.Fatal("Error saving results", err)
	}
	s1.Close()

	s2, err := Open(path, Fingerprint("500", "length", "scoredif", "sim-v1", "rec-v2"))
	if err != nil {
		tst.Fatal("Error opening store", err)
	}
	defer s2.Close()
	loaded, err := s2.Load(3)
	if err != nil {
		tst.Fatal("Error loading results", err)
	}
	if loaded != nil {
		tst.Error("Checkpoint survived a reconciler change:", loaded)
	}
}
