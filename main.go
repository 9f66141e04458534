package main

import "martflow/cmd"

func main() {
	cmd.Execute()
}
