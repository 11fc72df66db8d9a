package logging

import "testing"

func TestProgressSamplerBuckets(t *testing.T) {
	s := NewProgressSampler(10)
	if !s.ShouldLog(0, "downloading") {
		t.Fatal("first event should log")
	}
	if s.ShouldLog(5, "downloading") {
		t.Fatal("same bucket should not log")
	}
	if !s.ShouldLog(12, "downloading") {
		t.Fatal("crossing a bucket should log")
	}
	if !s.ShouldLog(0, "transcribing") {
		t.Fatal("phase change should log")
	}
	if !s.ShouldLog(100, "transcribing") {
		t.Fatal("completion should log")
	}
	if s.ShouldLog(100, "transcribing") {
		t.Fatal("repeated completion should not log")
	}
}

func TestProgressSamplerUnknownPercent(t *testing.T) {
	s := NewProgressSampler(0)
	if s.bucketSize != 5 {
		t.Fatalf("bucketSize = %v, want 5", s.bucketSize)
	}
	if !s.ShouldLog(-1, "uploading") {
		t.Fatal("new phase with unknown percent should log")
	}
	if s.ShouldLog(-1, "uploading") {
		t.Fatal("unknown percent in same phase should not log")
	}
	s.Reset()
	if !s.ShouldLog(-1, "uploading") {
		t.Fatal("reset should allow the phase to log again")
	}
}

func TestProgressSamplerNil(t *testing.T) {
	var s *ProgressSampler
	if !s.ShouldLog(50, "x") {
		t.Fatal("nil sampler should always log")
	}
	s.Reset()
}
