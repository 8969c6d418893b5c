// hashpass gera um hash Argon2id para uso em seeds e testes manuais.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/gestaozabele/registrocivil/internal/auth"
)

func main() {
	password := ""
	if len(os.Args) > 1 {
		password = os.Args[1]
	} else {
		// Sem argumento, lê a senha da entrada padrão (evita vazá-la no
		// histórico do shell).
		reader := bufio.NewReader(os.Stdin)
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			fmt.Fprintln(os.Stderr, "uso: hashpass [senha]  (ou senha via stdin)")
			os.Exit(1)
		}
		password = strings.TrimRight(line, "\r\n")
	}

	if password == "" {
		fmt.Fprintln(os.Stderr, "senha vazia")
		os.Exit(1)
	}

	hash, err := auth.Hash(password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "erro ao gerar hash: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(hash)
}
