package main

import "chatd/cmd"

func main() {
	cmd.Execute()
}
