package main

import "github.com/rlkit/policygrad/examples"

func main() {
	examples.ActorCritic()
}
