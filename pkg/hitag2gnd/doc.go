// Package hitag2gnd recovers the 48-bit HiTag2 register state from known
// keystream with a layered guess-and-determine search.
//
// Each layer of the search hypothesizes the register bits the filter function
// reads that are not known yet, keeps only the hypotheses whose filter output
// matches the observed keystream bit, and shifts the register on. Roughly half
// of the hypotheses fail each check, which keeps the tree narrow. Hypotheses
// surviving every layer are checked against the rest of the keystream and
// shifted back to the state that produced the first keystream bit.
//
// # Quick Start
//
//	client := hitag2gnd.NewClient()
//
//	ks, _ := hitag2gnd.ParseKeystream("a79d82d0", 32)
//	result, err := client.Recover(ks)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, s := range result.States() {
//	    fmt.Printf("%012x\n", s)
//	}
//
// The unrestricted search over HiTag2 is expensive. For checking a setup
// against a known answer, pin part of the register to a reference trajectory:
//
//	cfg := hitag2gnd.DefaultConfig()
//	cfg.Debug = hitag2gnd.DefaultDebugConfig(0xb43281238282)
//	result, err := hitag2gnd.NewClient().WithConfig(cfg).Recover(ks)
//
// # Solutions
//
// The search explores the whole pruned tree and reports every confirmed
// state. Different branches can confirm the same state, so
// RecoveryResult.Solutions may hold duplicates; RecoveryResult.States returns
// the distinct ones.
package hitag2gnd
