// toymna simulates SPICE style netlists with a modified nodal analysis engine.
package main

func main() {
	Execute()
}
