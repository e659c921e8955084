package qmp

// KBDNone is the sentinel returned for a QKeyCode string this stub does not
// recognize. Unrecognized names are silently ignored at the send site,
// never treated as an error.
const KBDNone = -1

// Key IDs forwarded to facade.Emulator.AddKey. These are this module's own
// enumeration, not QEMU's or the embedding emulator's; a real embedder's
// facade implementation is responsible for translating them onward (or, for
// a from-scratch embedder, adopting this numbering directly).
const (
	keyA = iota
	keyB
	keyC
	keyD
	keyE
	keyF
	keyG
	keyH
	keyI
	keyJ
	keyK
	keyL
	keyM
	keyN
	keyO
	keyP
	keyQ
	keyR
	keyS
	keyT
	keyU
	keyV
	keyW
	keyX
	keyY
	keyZ

	key0
	key1
	key2
	key3
	key4
	key5
	key6
	key7
	key8
	key9

	keyF1
	keyF2
	keyF3
	keyF4
	keyF5
	keyF6
	keyF7
	keyF8
	keyF9
	keyF10
	keyF11
	keyF12
	keyF13
	keyF14
	keyF15
	keyF16
	keyF17
	keyF18
	keyF19
	keyF20
	keyF21
	keyF22
	keyF23
	keyF24

	keyShift
	keyShiftR
	keyCtrl
	keyCtrlR
	keyAlt
	keyAltR
	keyMetaL
	keyMetaR
	keyMenu

	keyUp
	keyDown
	keyLeft
	keyRight
	keyHome
	keyEnd
	keyPageUp
	keyPageDown
	keyInsert
	keyDelete

	keyKp0
	keyKp1
	keyKp2
	keyKp3
	keyKp4
	keyKp5
	keyKp6
	keyKp7
	keyKp8
	keyKp9
	keyKpDivide
	keyKpMultiply
	keyKpSubtract
	keyKpAdd
	keyKpEnter
	keyKpDecimal

	keyGraveAccent
	keyMinus
	keyEqual
	keyBackslash
	keyBracketLeft
	keyBracketRight
	keySemicolon
	keyApostrophe
	keyComma
	keyDot
	keySlash
	keyLess

	keyRet
	keyEsc
	keySpc
	keyTab
	keyBackspace
	keyCapsLock
	keyNumLock
	keyScrollLock
	keySysrq
	keyPause

	keyHenkan
	keyMuhenkan
	keyHiragana
	keyYen
	keyRo
)

// qkeyCodes maps QEMU's QKeyCode strings (the "data" field of a
// {"type":"qcode",...} key) to this module's key IDs.
var qkeyCodes = map[string]int{
	"a": keyA, "b": keyB, "c": keyC, "d": keyD, "e": keyE, "f": keyF,
	"g": keyG, "h": keyH, "i": keyI, "j": keyJ, "k": keyK, "l": keyL,
	"m": keyM, "n": keyN, "o": keyO, "p": keyP, "q": keyQ, "r": keyR,
	"s": keyS, "t": keyT, "u": keyU, "v": keyV, "w": keyW, "x": keyX,
	"y": keyY, "z": keyZ,

	"0": key0, "1": key1, "2": key2, "3": key3, "4": key4,
	"5": key5, "6": key6, "7": key7, "8": key8, "9": key9,

	"f1": keyF1, "f2": keyF2, "f3": keyF3, "f4": keyF4, "f5": keyF5,
	"f6": keyF6, "f7": keyF7, "f8": keyF8, "f9": keyF9, "f10": keyF10,
	"f11": keyF11, "f12": keyF12, "f13": keyF13, "f14": keyF14,
	"f15": keyF15, "f16": keyF16, "f17": keyF17, "f18": keyF18,
	"f19": keyF19, "f20": keyF20, "f21": keyF21, "f22": keyF22,
	"f23": keyF23, "f24": keyF24,

	"shift": keyShift, "shift_r": keyShiftR,
	"ctrl": keyCtrl, "ctrl_r": keyCtrlR,
	"alt": keyAlt, "alt_r": keyAltR,
	"meta_l": keyMetaL, "meta_r": keyMetaR,
	"menu": keyMenu,

	"up": keyUp, "down": keyDown, "left": keyLeft, "right": keyRight,
	"home": keyHome, "end": keyEnd, "pgup": keyPageUp, "pgdn": keyPageDown,
	"insert": keyInsert, "delete": keyDelete,

	"kp_0": keyKp0, "kp_1": keyKp1, "kp_2": keyKp2, "kp_3": keyKp3,
	"kp_4": keyKp4, "kp_5": keyKp5, "kp_6": keyKp6, "kp_7": keyKp7,
	"kp_8": keyKp8, "kp_9": keyKp9,
	"kp_divide": keyKpDivide, "kp_multiply": keyKpMultiply,
	"kp_subtract": keyKpSubtract, "kp_add": keyKpAdd,
	"kp_enter": keyKpEnter, "kp_decimal": keyKpDecimal,

	"grave_accent": keyGraveAccent, "minus": keyMinus, "equal": keyEqual,
	"backslash": keyBackslash, "bracket_left": keyBracketLeft,
	"bracket_right": keyBracketRight, "semicolon": keySemicolon,
	"apostrophe": keyApostrophe, "comma": keyComma, "dot": keyDot,
	"slash": keySlash, "less": keyLess,

	"ret": keyRet, "esc": keyEsc, "spc": keySpc, "tab": keyTab,
	"backspace": keyBackspace, "caps_lock": keyCapsLock,
	"num_lock": keyNumLock, "scroll_lock": keyScrollLock,
	"sysrq": keySysrq, "pause": keyPause,

	"henkan": keyHenkan, "muhenkan": keyMuhenkan, "hiragana": keyHiragana,
	"yen": keyYen, "ro": keyRo,
}

// lookupKeyCode translates a QKeyCode name to this module's key ID, or
// KBDNone if unrecognized.
func lookupKeyCode(name string) int {
	if id, ok := qkeyCodes[name]; ok {
		return id
	}

	return KBDNone
}
