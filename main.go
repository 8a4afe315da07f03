package main

import "zippyst/cmd"

func main() {
	cmd.Execute()
}
