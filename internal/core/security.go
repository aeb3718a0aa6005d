// AngelaMos | 2026
// security.go

package core

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"
)

const (
	saltLength        = 16
	refreshTokenBytes = 32
)

var ErrMalformedHash = errors.New("malformed password hash")

// argonParams are the Argon2id cost settings encoded into every stored
// password hash.
type argonParams struct {
	memory  uint32
	time    uint32
	threads uint8
	keyLen  uint32
}

var passwordParams = argonParams{
	memory:  64 * 1024,
	time:    1,
	threads: 4,
	keyLen:  32,
}

func (p argonParams) derive(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, p.time, p.memory, p.threads, p.keyLen)
}

// passwordHash is a decoded "$argon2id$v=..$m=..,t=..,p=..$salt$key" string.
type passwordHash struct {
	params argonParams
	salt   []byte
	key    []byte
}

func (h passwordHash) String() string {
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.memory,
		h.params.time,
		h.params.threads,
		base64.RawStdEncoding.EncodeToString(h.salt),
		base64.RawStdEncoding.EncodeToString(h.key),
	)
}

func parsePasswordHash(encoded string) (passwordHash, error) {
	var h passwordHash

	fields := strings.Split(encoded, "$")
	if len(fields) != 6 || fields[0] != "" || fields[1] != "argon2id" {
		return h, ErrMalformedHash
	}

	var version int
	if _, err := fmt.Sscanf(fields[2], "v=%d", &version); err != nil || version != argon2.Version {
		return h, fmt.Errorf("%w: version %q", ErrMalformedHash, fields[2])
	}

	if _, err := fmt.Sscanf(fields[3], "m=%d,t=%d,p=%d",
		&h.params.memory, &h.params.time, &h.params.threads); err != nil {
		return h, fmt.Errorf("%w: params: %w", ErrMalformedHash, err)
	}

	var err error
	if h.salt, err = base64.RawStdEncoding.DecodeString(fields[4]); err != nil {
		return h, fmt.Errorf("%w: salt: %w", ErrMalformedHash, err)
	}
	if h.key, err = base64.RawStdEncoding.DecodeString(fields[5]); err != nil {
		return h, fmt.Errorf("%w: key: %w", ErrMalformedHash, err)
	}

	//nolint:gosec // G115: Argon2id keys are 32 bytes
	h.params.keyLen = uint32(len(h.key))
	return h, nil
}

// HashPassword hashes an account password with the current Argon2id cost.
func HashPassword(password string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	return passwordHash{
		params: passwordParams,
		salt:   salt,
		key:    passwordParams.derive(password, salt),
	}.String(), nil
}

func VerifyPassword(password, encoded string) (bool, error) {
	h, err := parsePasswordHash(encoded)
	if err != nil {
		return false, err
	}

	return subtle.ConstantTimeCompare(h.key, h.params.derive(password, h.salt)) == 1, nil
}

var decoyHash = sync.OnceValue(func() string {
	hash, err := HashPassword("honeydae-unknown-account")
	if err != nil {
		panic(fmt.Sprintf("security: hash decoy password: %v", err))
	}
	return hash
})

// CheckLogin verifies a sign-in attempt. An empty encoded hash means the
// account does not exist; the password is still hashed so unknown emails
// take as long as wrong passwords. rehash is set when the stored hash was
// made with older cost settings and should be replaced.
func CheckLogin(password, encoded string) (ok bool, rehash string, err error) {
	if encoded == "" {
		_, _ = VerifyPassword(password, decoyHash()) //nolint:errcheck // decoy is well formed
		return false, "", nil
	}

	h, err := parsePasswordHash(encoded)
	if err != nil {
		return false, "", err
	}
	if subtle.ConstantTimeCompare(h.key, h.params.derive(password, h.salt)) != 1 {
		return false, "", nil
	}

	if h.params == passwordParams {
		return true, "", nil
	}

	rehash, err = HashPassword(password)
	if err != nil {
		//nolint:nilerr // the password matched; the upgrade waits for the next login
		return true, "", nil
	}
	return true, rehash, nil
}

// RandomString draws n characters uniformly from alphabet using crypto/rand.
func RandomString(alphabet string, n int) (string, error) {
	if alphabet == "" || n <= 0 {
		return "", fmt.Errorf("random string: alphabet and length are required")
	}

	size := big.NewInt(int64(len(alphabet)))
	out := make([]byte, n)
	for i := range out {
		idx, err := rand.Int(rand.Reader, size)
		if err != nil {
			return "", fmt.Errorf("generate random index: %w", err)
		}
		out[i] = alphabet[idx.Int64()]
	}

	return string(out), nil
}

// NewRefreshToken returns an opaque URL-safe session token and the hash
// that is stored in its place.
func NewRefreshToken() (token, hash string, err error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("generate refresh token: %w", err)
	}

	token = base64.RawURLEncoding.EncodeToString(buf)
	return token, HashToken(token), nil
}

func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
