package main

import "github.com/ultrasop/ultrasop/cmd"

func main() {
	cmd.Execute()
}
