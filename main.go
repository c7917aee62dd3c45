package main

import "github.com/vibemeter/vibemeter/cmd"

func main() {
	cmd.Execute()
}
