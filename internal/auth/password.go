package auth

import (
	"github.com/alexedwards/argon2id"
)

// Parâmetros Argon2id; ficam embutidos no hash, então podem evoluir sem
// invalidar senhas existentes.
var hashParams = &argon2id.Params{
	Memory:      64 * 1024,
	Iterations:  3,
	Parallelism: 2,
	SaltLength:  16,
	KeyLength:   32,
}

// Hash gera o hash Argon2id da senha.
func Hash(password string) (string, error) {
	return argon2id.CreateHash(password, hashParams)
}

// Verify compara senha e hash usando os parâmetros gravados no próprio hash.
func Verify(password, encodedHash string) (bool, error) {
	return argon2id.ComparePasswordAndHash(password, encodedHash)
}
