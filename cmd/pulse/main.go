package main

import "github.com/communitypulse/pulse/cmd/pulse/cmd"

func main() {
	cmd.Execute()
}
