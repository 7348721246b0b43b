package stats

import (
	"sync"
	"testing"
)

func TestCounters(t *testing.T) {
	a := New(nil)

	for i := 0; i < 10; i++ {
		a.Burst()
		a.CRC(i%2 == 0)
		a.Sync(i != 0)
	}
	a.Dropped()
	a.Encryption("TEA1", true)
	a.Encryption("", false)
	a.Decryption(BandHigh)
	a.Decryption(BandNoMatch)
	a.Network(260, 98)
	a.Network(260, 98)

	s := a.Snapshot()
	if s.Bursts != 10 || s.Dropped != 1 {
		t.Errorf("bursts=%d dropped=%d", s.Bursts, s.Dropped)
	}
	if s.CRCPass != 5 || s.CRCFail != 5 || s.CRCRate != 0.5 {
		t.Errorf("crc pass=%d fail=%d rate=%v", s.CRCPass, s.CRCFail, s.CRCRate)
	}
	if s.SyncRate != 0.9 {
		t.Errorf("sync rate = %v, want 0.9", s.SyncRate)
	}
	if s.EncryptedFrames != 1 || s.ClearFrames != 1 {
		t.Errorf("encrypted=%d clear=%d", s.EncryptedFrames, s.ClearFrames)
	}
	if s.ByAlgorithm["TEA1"] != 1 || s.ByAlgorithm["clear"] != 1 {
		t.Errorf("ByAlgorithm = %v", s.ByAlgorithm)
	}
	if s.DecryptAttempts != 2 || s.DecryptHigh != 1 || s.DecryptNoMatch != 1 {
		t.Errorf("decrypt attempts=%d high=%d nomatch=%d", s.DecryptAttempts, s.DecryptHigh, s.DecryptNoMatch)
	}
	if len(s.Networks) != 1 {
		t.Errorf("Networks = %v, want one entry", s.Networks)
	}
}

func TestReset(t *testing.T) {
	a := New(nil)
	a.Burst()
	a.Encryption("TEA2", true)
	a.Reset()
	s := a.Snapshot()
	if s.Bursts != 0 || s.EncryptedFrames != 0 || len(s.ByAlgorithm) != 0 {
		t.Errorf("Reset left state: %+v", s)
	}
}

func TestConcurrentUpdates(t *testing.T) {
	a := New(nil)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				a.Burst()
				a.CRC(true)
				a.Encryption("TEA1", true)
			}
		}()
	}
	wg.Wait()
	s := a.Snapshot()
	if s.Bursts != 8000 || s.CRCPass != 8000 || s.ByAlgorithm["TEA1"] != 8000 {
		t.Errorf("concurrent counts wrong: %+v", s)
	}
}
