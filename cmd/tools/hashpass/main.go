package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/noah-isme/virtual-office/internal/auth"
)

// hashpass prints an argon2id hash for DEMO_PASSWORD_HASH or
// DEMO_ADMIN_PASSWORD_HASH. The password is read from the first argument or stdin.
func main() {
	password := ""
	if len(os.Args) > 1 {
		password = os.Args[1]
	} else {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			log.Fatalf("read password: %v", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}
	if password == "" {
		log.Fatal("password is empty")
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}
	fmt.Println(hash)
}
