package catalog

func str(name string) Column { return Column{Name: name, Type: TypeString} }

func optStr(name string) Column { return Column{Name: name, Type: TypeString, Nullable: true} }

func optText(name string) Column { return Column{Name: name, Type: TypeText, Nullable: true} }

func date(name string) Column { return Column{Name: name, Type: TypeDate} }

func decimal(name string) Column { return Column{Name: name, Type: TypeDecimal} }

func enum(name string, values ...string) Column {
	return Column{Name: name, Type: TypeEnum, Values: values}
}

func withDefault(c Column, v any) Column {
	c.Default = v
	return c
}

var membersSchema = &Schema{
	Table: "members",
	Columns: []Column{
		str("first_name"),
		str("last_name"),
		date("date_of_birth"),
		enum("gender", "male", "female"),
		optStr("phone"),
		optStr("email"),
		optText("address"),
		optStr("photo_url"),
		optStr("parent_name"),
		optStr("parent_phone"),
		optStr("parent_email"),
		enum("category", "mini_poussin", "poussin", "benjamin", "minime", "cadet", "junior", "senior", "veteran"),
		withDefault(enum("discipline", "judo", "ju_jitsu", "taiso"), "judo"),
		withDefault(str("belt_level"), "white"),
		withDefault(enum("status", "active", "suspended", "pending", "inactive"), "active"),
		optStr("medical_certificate_url"),
		{Name: "medical_certificate_expiry", Type: TypeDate, Nullable: true},
		decimal("monthly_fee"),
		{Name: "registration_fee", Type: TypeDecimal, Nullable: true},
		{Name: "has_discount", Type: TypeBoolean, Nullable: true, Default: false},
		{Name: "discount_percentage", Type: TypeDecimal, Nullable: true, Default: float64(0)},
		date("registration_date"),
		{Name: "last_renewal_date", Type: TypeDate, Nullable: true},
	},
}

var paymentsSchema = &Schema{
	Table:  "payments",
	Author: "recorded_by",
	Columns: []Column{
		str("member_id"),
		decimal("amount"),
		enum("payment_type", "monthly_fee", "registration", "equipment", "license", "other"),
		withDefault(enum("payment_method", "cash", "mobile_money", "bank_transfer"), "cash"),
		date("payment_date"),
		withDefault(enum("status", "paid", "pending", "late", "cancelled"), "paid"),
		optStr("month_year"),
		optText("notes"),
		optStr("receipt_number"),
		optStr("recorded_by"),
	},
}

var licensesSchema = &Schema{
	Table: "licenses",
	Columns: []Column{
		str("member_id"),
		optStr("license_number"),
		str("season"),
		date("issue_date"),
		date("expiry_date"),
		decimal("amount"),
		withDefault(enum("status", "active", "expired", "pending"), "active"),
	},
}

var equipmentSchema = &Schema{
	Table: "equipment",
	Columns: []Column{
		str("name"),
		enum("equipment_type", "judogi", "belt", "zori", "bag", "protection", "other"),
		optStr("size"),
		decimal("price"),
		{Name: "stock_quantity", Type: TypeInteger, Default: int64(0)},
		optText("description"),
	},
}

var equipmentPurchasesSchema = &Schema{
	Table: "equipment_purchases",
	Columns: []Column{
		str("member_id"),
		str("equipment_id"),
		{Name: "quantity", Type: TypeInteger, Default: int64(1)},
		decimal("unit_price"),
		decimal("total_amount"),
		date("purchase_date"),
		optText("notes"),
	},
}

var attendancesSchema = &Schema{
	Table:  "attendances",
	Author: "recorded_by",
	Columns: []Column{
		str("member_id"),
		date("attendance_date"),
		{Name: "is_present", Type: TypeBoolean, Default: true},
		optStr("recorded_by"),
		optText("notes"),
	},
}

var transactionsSchema = &Schema{
	Table:  "transactions",
	Author: "recorded_by",
	Columns: []Column{
		enum("transaction_type", "income", "expense"),
		enum("category",
			"membership_fee", "equipment_sale", "license_fee", "subsidy", "donation",
			"rent", "utilities", "equipment_purchase", "salary", "insurance", "other"),
		decimal("amount"),
		date("transaction_date"),
		optText("description"),
		optStr("reference"),
		optStr("recorded_by"),
	},
}

var messagesSchema = &Schema{
	Table:  "messages",
	Author: "sent_by",
	Columns: []Column{
		str("title"),
		{Name: "content", Type: TypeText},
		withDefault(enum("priority", "low", "normal", "high"), "normal"),
		{Name: "is_published", Type: TypeBoolean, Default: false},
		optStr("sent_by"),
	},
}
