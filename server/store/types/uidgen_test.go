package types

import (
	"sync"
	"testing"
)

var testKey = []byte("testkey1testkey2") // 16 bytes for XTEA

func TestUidGeneratorInit(t *testing.T) {
	ug := &UidGenerator{}
	if err := ug.Init(1, testKey); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if ug.seq == nil {
		t.Error("Snowflake generator should be initialized")
	}
	if ug.cipher == nil {
		t.Error("Cipher should be initialized")
	}

	// Already initialized generator is not reinitialized.
	oldSeq := ug.seq
	oldCipher := ug.cipher
	if err := ug.Init(3, testKey); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if ug.seq != oldSeq {
		t.Error("Snowflake generator should not be reinitialized")
	}
	if ug.cipher != oldCipher {
		t.Error("Cipher should not be reinitialized")
	}
}

func TestUidGeneratorInitWithInvalidKey(t *testing.T) {
	ug := &UidGenerator{}
	if err := ug.Init(1, []byte("short")); err == nil {
		t.Error("Expected error with short key")
	}

	ug = &UidGenerator{}
	if err := ug.Init(1, nil); err == nil {
		t.Error("Expected error with nil key")
	}
}

func TestUidGeneratorUninitialized(t *testing.T) {
	ug := &UidGenerator{}
	if uid, err := ug.Get(); err == nil {
		t.Error("Expected error from uninitialized generator, got", uid)
	}
}

func TestUidString(t *testing.T) {
	ug := &UidGenerator{}
	if err := ug.Init(1, testKey); err != nil {
		t.Fatal(err)
	}

	u1, err := ug.Get()
	if err != nil {
		t.Fatal(err)
	}
	u2, err := ug.Get()
	if err != nil {
		t.Fatal(err)
	}
	s1, s2 := u1.String(), u2.String()
	if len(s1) != uidBase64Unpadded {
		t.Errorf("Expected string of length %d, got '%s'", uidBase64Unpadded, s1)
	}
	if s1 == s2 {
		t.Error("Generated IDs must be unique:", s1)
	}
}

func TestUidGeneratorRoundtrip(t *testing.T) {
	ug := &UidGenerator{}
	if err := ug.Init(1, testKey); err != nil {
		t.Fatal(err)
	}

	uid1, _ := ug.Get()
	uid2, _ := ug.Get()
	d1 := ug.DecodeUid(uid1)
	d2 := ug.DecodeUid(uid2)
	if d1 <= 0 || d2 <= 0 {
		t.Fatalf("Decoded values must be positive: %d, %d", d1, d2)
	}
	if d2 <= d1 {
		t.Errorf("Snowflake values must grow: %d then %d", d1, d2)
	}
	if ug.DecodeUid(0) != 0 {
		t.Error("Zero uid must decode to zero")
	}
}

func TestUidGeneratorConcurrency(t *testing.T) {
	ug := &UidGenerator{}
	if err := ug.Init(1, testKey); err != nil {
		t.Fatal(err)
	}

	const workers = 8
	const perWorker = 200
	var mu sync.Mutex
	seen := make(map[Uid]bool, workers*perWorker)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				uid, err := ug.Get()
				if err != nil {
					t.Error(err)
					return
				}
				mu.Lock()
				seen[uid] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != workers*perWorker {
		t.Errorf("Expected %d unique ids, got %d", workers*perWorker, len(seen))
	}
}

func TestGroupIsValid(t *testing.T) {
	var nilGroup *Group
	cases := []struct {
		g    *Group
		want bool
	}{
		{nilGroup, false},
		{&Group{}, false},
		{&Group{Node: "  "}, false},
		{&Group{Node: "test", Name: "Test group"}, true},
	}
	for i, c := range cases {
		if got := c.g.IsValid(); got != c.want {
			t.Errorf("%d: IsValid() = %v, want %v", i, got, c.want)
		}
	}
}
