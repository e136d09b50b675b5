package types

import (
	"encoding/binary"
	"errors"

	sf "github.com/tinode/snowflake"
	"golang.org/x/crypto/xtea"
)

// UidGenerator holds snowflake and encryption parameters.
// Stanza IDs of outbound messages are snowflake-generated uint64 values, weakly
// encrypted so that they do not leak the message rate.
type UidGenerator struct {
	seq    *sf.SnowFlake
	cipher *xtea.Cipher
}

// Init initialises the Uid generator. Already initialized parts are kept.
func (ug *UidGenerator) Init(workerID uint, key []byte) error {
	var err error

	if ug.seq == nil {
		if ug.seq, err = sf.NewSnowFlake(uint32(workerID)); err != nil {
			return err
		}
	}
	if ug.cipher == nil {
		if ug.cipher, err = xtea.NewCipher(key); err != nil {
			return err
		}
	}

	return nil
}

// Get generates a unique weakly encrypted id so ids are random-looking.
// Fails if the generator is not initialized or the clock went backwards.
func (ug *UidGenerator) Get() (Uid, error) {
	buf, err := getIDBuffer(ug)
	if err != nil {
		return 0, err
	}
	return Uid(binary.LittleEndian.Uint64(buf)), nil
}

// DecodeUid takes an encrypted Uid and decrypts it into a snowflake value.
func (ug *UidGenerator) DecodeUid(uid Uid) int64 {
	if uid == 0 || ug.cipher == nil {
		return 0
	}
	src := make([]byte, 8)
	dst := make([]byte, 8)
	binary.LittleEndian.PutUint64(src, uint64(uid))
	ug.cipher.Decrypt(dst, src)
	return int64(binary.LittleEndian.Uint64(dst))
}

// getIDBuffer returns a byte array holding the Uid bytes.
func getIDBuffer(ug *UidGenerator) ([]byte, error) {
	if ug.seq == nil || ug.cipher == nil {
		return nil, errors.New("uid generator is not initialized")
	}

	id, err := ug.seq.Next()
	if err != nil {
		return nil, err
	}

	src := make([]byte, 8)
	dst := make([]byte, 8)
	binary.LittleEndian.PutUint64(src, id)
	ug.cipher.Encrypt(dst, src)

	return dst, nil
}
