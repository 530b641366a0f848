package doc

// Encryption describes a detected legacy encryption/obfuscation scheme
// (spec §6: doc.Encryption() -> Option<Encryption>).
type Encryption struct {
	Obfuscated bool   // FibBase.fObfuscated: XOR obfuscation (method2)
	Algorithm  string // "XOR" or "RC4", best-effort guess pending key recovery
	LKey       uint32 // FibBase.lKey, needed by XOR key derivation / RC4 header size
}

// detectEncryption inspects FibBase's flags to report whether the document
// is encrypted at all, without attempting key recovery (spec §1: password
// recovery is out of scope; this only surfaces the fact and the data the
// caller needs to hand to crypt.ResolveKey).
func detectEncryption(base *FibBase) *Encryption {
	if !base.Encrypted() {
		return nil
	}
	algo := "RC4"
	if base.Obfuscated() {
		algo = "XOR"
	}
	return &Encryption{
		Obfuscated: base.Obfuscated(),
		Algorithm:  algo,
		LKey:       base.LKey,
	}
}
