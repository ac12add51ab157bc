package main

import (
	"log"

	"draftpad/app"
)

func main() {
	server := app.NewServer(nil)
	defer server.Close()
	log.Fatal(server.Start(""))
}
