package main

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
)

const SecretKeyBytesLen = 32

// Prints pair of keys ready to be put to .env file
func main() {
	for _, name := range []string{"ACCESS_SECRET_KEY", "REFRESH_SECRET_KEY"} {
		b := make([]byte, SecretKeyBytesLen)

		_, err := rand.Read(b)
		if err != nil {
			fmt.Printf("error while generating secret key: %v", err)
			os.Exit(1)
		}

		fmt.Printf("%s=%s\n", name, base64.StdEncoding.EncodeToString(b))
	}
}
