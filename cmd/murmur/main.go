package main

import "murmur/internal/cmd"

func main() {
	cmd.Run()
}
