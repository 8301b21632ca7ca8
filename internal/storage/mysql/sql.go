package mysql

// -----------------------------------------------------------------------------
// HOSTELS
// -----------------------------------------------------------------------------

const hostelColumns = `id, name, description, price, available_rooms, owner_name, owner_contact, thumbnail, created_at, updated_at`

// Newest first; id breaks ties between rows created in the same microsecond.
const listHostelsSQL = `
SELECT ` + hostelColumns + `
FROM hostels
ORDER BY created_at DESC, id DESC
`

const getHostelSQL = `
SELECT ` + hostelColumns + `
FROM hostels
WHERE id = ?
`

const lockHostelSQL = `SELECT id FROM hostels WHERE id = ? FOR UPDATE`

const insertHostelSQL = `
INSERT INTO hostels
  (id, name, description, price, available_rooms, owner_name, owner_contact, thumbnail)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?)
`

const updateHostelSQL = `
UPDATE hostels SET
  name            = ?,
  description     = ?,
  price           = ?,
  available_rooms = ?,
  owner_name      = ?,
  owner_contact   = ?,
  thumbnail       = ?
WHERE id = ?
`

// Room types go with the row through ON DELETE CASCADE.
const deleteHostelSQL = `DELETE FROM hostels WHERE id = ?`

// -----------------------------------------------------------------------------
// ROOM TYPES
// -----------------------------------------------------------------------------

// Followed by "(?,?,...)" for the hostel id set.
const listRoomTypesPrefix = "SELECT id, hostel_id, room_type, price, created_at\nFROM hostel_room_types\nWHERE hostel_id IN "

const listRoomTypesOrder = "\nORDER BY hostel_id, created_at, id"

const deleteRoomTypesSQL = `DELETE FROM hostel_room_types WHERE hostel_id = ?`

const insertRoomTypesPrefix = "INSERT INTO hostel_room_types\n  (id, hostel_id, room_type, price)\nVALUES "

// -----------------------------------------------------------------------------
// PROFILES / USERS
// -----------------------------------------------------------------------------

const getProfileSQL = `SELECT id, is_admin, created_at, updated_at FROM profiles WHERE id = ?`

// A concurrent first login may race on the same id; the second insert is a no-op.
const insertProfileSQL = `
INSERT INTO profiles (id, is_admin)
VALUES (?, ?)
ON DUPLICATE KEY UPDATE id = id
`

const findUserByEmailSQL = `SELECT id, email, password_hash, created_at FROM users WHERE email = ?`

const insertUserSQL = `INSERT INTO users (id, email, password_hash) VALUES (?, ?, ?)`

// Seeding: make an existing profile an admin.
const upsertAdminProfileSQL = `
INSERT INTO profiles (id, is_admin)
VALUES (?, TRUE)
ON DUPLICATE KEY UPDATE is_admin = TRUE
`
