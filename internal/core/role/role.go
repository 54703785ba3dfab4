package role

// Role は組織内の役職を表します。
type Role string

const (
	RoleDirector Role = "director"
	RoleManager  Role = "manager"
	RoleTeamLead Role = "team_lead"
	RoleEmployee Role = "employee"
	RoleIntern   Role = "intern"
)

// Band は認可判定に使う権限帯を表します。値は権限の高さ順に並びます。
type Band int

const (
	BandUnknown Band = iota
	EmployeeBand
	ManagerBand
	DirectorBand
)

// String は権限帯の表示名を返します。
func (b Band) String() string {
	switch b {
	case DirectorBand:
		return "director"
	case ManagerBand:
		return "manager"
	case EmployeeBand:
		return "employee"
	default:
		return "unknown"
	}
}

// IsValid は役職が既知の値かどうかを返します。
func IsValid(r Role) bool {
	switch r {
	case RoleDirector, RoleManager, RoleTeamLead, RoleEmployee, RoleIntern:
		return true
	default:
		return false
	}
}

// Classify は役職を権限帯に分類します。未知の役職は設定不備なので
// ErrUnknownRole を返し、権限帯の分岐としては扱いません。
func Classify(r Role) (Band, error) {
	switch r {
	case RoleDirector:
		return DirectorBand, nil
	case RoleManager, RoleTeamLead:
		return ManagerBand, nil
	case RoleEmployee, RoleIntern:
		return EmployeeBand, nil
	default:
		return BandUnknown, ErrUnknownRole
	}
}

// MustClassify は既知であることが保証された役職を分類します。
// 入力検証を通過した後のコードパスでのみ使用してください。
func MustClassify(r Role) Band {
	band, err := Classify(r)
	if err != nil {
		panic("role: classify unknown role " + string(r))
	}
	return band
}

// Outranks は権限帯 a が権限帯 b より上位かどうかを返します。
func Outranks(a, b Band) bool {
	return a > b
}
