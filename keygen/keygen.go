// keygen generates and validates the uid_key used to encrypt stanza ids.
package main

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"os"

	flag "github.com/spf13/pflag"
	"github.com/tinode/groups/server/store/types"
)

// XTEA key size.
const uidKeyLength = 16

func main() {
	var validateKey = flag.String("validate", "", "uid_key to validate")
	flag.Parse()

	if *validateKey != "" {
		os.Exit(validate(os.Stdout, *validateKey))
	}
	os.Exit(generate(os.Stdout, rand.Reader))
}

// generate prints a new random key formatted as a config entry.
func generate(w io.Writer, random io.Reader) int {
	key := make([]byte, uidKeyLength)
	if _, err := io.ReadFull(random, key); err != nil {
		fmt.Fprintln(w, "failed to generate key:", err)
		return 1
	}
	fmt.Fprintf(w, "\"uid_key\": \"%s\"\n", base64.StdEncoding.EncodeToString(key))
	return 0
}

// validate checks that the key decodes and initializes the id generator.
func validate(w io.Writer, key string) int {
	data, err := base64.StdEncoding.DecodeString(key)
	if err != nil {
		fmt.Fprintln(w, "INVALID: failed to decode base64:", err)
		return 1
	}
	if len(data) != uidKeyLength {
		fmt.Fprintf(w, "INVALID: key must be %d bytes, got %d\n", uidKeyLength, len(data))
		return 1
	}
	var idgen types.UidGenerator
	if err = idgen.Init(0, data); err != nil {
		fmt.Fprintln(w, "INVALID:", err)
		return 1
	}
	uid, err := idgen.Get()
	if err != nil {
		fmt.Fprintln(w, "INVALID: failed to generate an id:", err)
		return 1
	}
	if idgen.DecodeUid(uid) <= 0 {
		fmt.Fprintln(w, "INVALID: generated id does not decode")
		return 1
	}
	fmt.Fprintln(w, "Valid")
	return 0
}
