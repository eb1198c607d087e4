package main

import (
	"github.com/joho/godotenv"

	"lototrak/cmd"
)

func main() {
	godotenv.Load()
	cmd.Execute()
}
