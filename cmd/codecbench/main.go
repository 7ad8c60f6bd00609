package main

import "codecbench/cmd/codecbench/cmd"

func main() {
	cmd.Execute()
}
