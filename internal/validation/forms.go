package validation

var registerSchema = mustSchema("register.json", `{
  "type": "object",
  "required": ["username", "email", "password"],
  "properties": {
    "username": {"type": "string", "not": {"const": ""}, "minLength": 5},
    "email":    {"type": "string", "not": {"const": ""}, "pattern": "^[^@]+@[^@]+\\.[^@.]{2,}$"},
    "password": {"type": "string", "not": {"const": ""}, "minLength": 6}
  }
}`,
	field{"username", []rule{
		{kindRequired, "Username is required."},
		{"minLength", "Username should be at least 5 characters."},
	}},
	field{"email", []rule{
		{kindRequired, "Email is required."},
		{"pattern", "Not a valid email address."},
	}},
	field{"password", []rule{
		{kindRequired, "Password is required."},
		{"minLength", "Password should be at least 6 characters."},
	}},
)

var loginSchema = mustSchema("login.json", `{
  "type": "object",
  "required": ["identifier", "password"],
  "properties": {
    "identifier": {"type": "string", "not": {"const": ""}, "pattern": "^[^@]+@[^@]+\\.[^@.]{2,}$"},
    "password":   {"type": "string", "not": {"const": ""}, "minLength": 6}
  }
}`,
	field{"identifier", []rule{
		{kindRequired, "Email is required."},
		{"pattern", "Not a valid email address."},
	}},
	field{"password", []rule{
		{kindRequired, "Password is required."},
		{"minLength", "Password should be at least 6 characters."},
	}},
)

// RegisterForm is the sign-up input.
type RegisterForm struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (f RegisterForm) Validate() error { return registerSchema.Validate(f) }

// LoginForm is the sign-in input. Identifier is an email address.
type LoginForm struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

func (f LoginForm) Validate() error { return loginSchema.Validate(f) }
