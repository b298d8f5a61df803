package main

import "github.com/DominicWuest/nodebisect/cmd"

func main() {
	cmd.Execute()
}
