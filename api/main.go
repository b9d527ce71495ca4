package main

import (
	"github.com/joho/godotenv"

	"github.com/helixml/sessionpilot/api/cmd/sessionpilot"
)

func main() {
	_ = godotenv.Load()
	sessionpilot.Execute()
}
