package main

import (
	"github.com/divergen371/ipscan/internal/cli"
)

func main() {
	cli.Execute()
}
