package main

import "github.com/audsync/audsync/cmd"

func main() {
	cmd.Execute()
}
