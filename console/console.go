// Package console is the text menu in front of the record store.
package console

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"student-records-go/db"
	"student-records-go/models"
)

const (
	choiceAdd = iota + 1
	choiceEdit
	choiceDelete
	choiceList
	choiceExit
)

const separator = "-------------------------------------------------------------"

// errInputClosed ends the menu the same way as choosing Exit.
var errInputClosed = errors.New("input closed")

type Console struct {
	in    *bufio.Scanner
	out   io.Writer
	store *db.RecordStore
}

func New(in io.Reader, out io.Writer, store *db.RecordStore) *Console {
	return &Console{
		in:    bufio.NewScanner(in),
		out:   out,
		store: store,
	}
}

// Run shows the menu until the user exits or input ends. Saving is left to the caller.
func (c *Console) Run() error {
	for {
		c.printMenu()
		line, err := c.readLine("Enter your choice: ")
		if err != nil {
			return c.finish(err)
		}

		choice, _ := strconv.Atoi(strings.TrimSpace(line))
		switch choice {
		case choiceAdd:
			err = c.addStudent()
		case choiceEdit:
			err = c.editStudent()
		case choiceDelete:
			err = c.deleteStudent()
		case choiceList:
			c.ShowAll()
		case choiceExit:
			fmt.Fprintln(c.out, "Exiting...")
			return nil
		default:
			fmt.Fprintln(c.out, "Invalid choice! Try again.")
		}
		if err != nil {
			return c.finish(err)
		}
	}
}

func (c *Console) finish(err error) error {
	if errors.Is(err, errInputClosed) {
		fmt.Fprintln(c.out, "\nExiting...")
		return nil
	}
	return err
}

func (c *Console) printMenu() {
	fmt.Fprint(c.out, "\n===== Student Record Management =====\n"+
		"1. Add Student\n"+
		"2. Edit Student\n"+
		"3. Delete Student\n"+
		"4. Show All Students\n"+
		"5. Exit\n")
}

func (c *Console) readLine(prompt string) (string, error) {
	fmt.Fprint(c.out, prompt)
	if !c.in.Scan() {
		if err := c.in.Err(); err != nil {
			return "", fmt.Errorf("read input: %w", err)
		}
		return "", errInputClosed
	}
	return c.in.Text(), nil
}

func (c *Console) readRoll(prompt string) (int, error) {
	for {
		line, err := c.readLine(prompt)
		if err != nil {
			return 0, err
		}
		roll, err := strconv.Atoi(strings.TrimSpace(line))
		if err == nil {
			return roll, nil
		}
		fmt.Fprintln(c.out, "Roll No must be a whole number! Try again.")
	}
}

func (c *Console) readDetails(namePrompt, classPrompt, phonePrompt string) (name, cls, phone string, err error) {
	if name, err = c.readLine(namePrompt); err != nil {
		return
	}
	if cls, err = c.readLine(classPrompt); err != nil {
		return
	}
	phone, err = c.readLine(phonePrompt)
	return
}

func (c *Console) addStudent() error {
	roll, err := c.readRoll("Enter Roll No: ")
	if err != nil {
		return err
	}
	name, cls, phone, err := c.readDetails("Enter Name: ", "Enter Class: ", "Enter Parent Phone: ")
	if err != nil {
		return err
	}

	err = c.store.Add(models.StudentRecord{Roll: roll, Name: name, StudentClass: cls, ParentPhone: phone})
	if errors.Is(err, db.ErrDuplicateRoll) {
		fmt.Fprintln(c.out, "Roll No already exists!")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, "Student added successfully!")
	return nil
}

func (c *Console) editStudent() error {
	roll, err := c.readRoll("Enter Roll No of Student to Edit: ")
	if err != nil {
		return err
	}
	if _, ok := c.store.FindByRoll(roll); !ok {
		fmt.Fprintln(c.out, "Student not found!")
		return nil
	}
	name, cls, phone, err := c.readDetails("Enter New Name: ", "Enter New Class: ", "Enter New Parent Phone: ")
	if err != nil {
		return err
	}

	if err := c.store.Edit(roll, name, cls, phone); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			fmt.Fprintln(c.out, "Student not found!")
			return nil
		}
		return err
	}
	fmt.Fprintln(c.out, "Record updated successfully!")
	return nil
}

func (c *Console) deleteStudent() error {
	roll, err := c.readRoll("Enter Roll No of Student to Delete: ")
	if err != nil {
		return err
	}
	if err := c.store.Delete(roll); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			fmt.Fprintln(c.out, "Student not found!")
			return nil
		}
		return err
	}
	fmt.Fprintln(c.out, "Record deleted successfully!")
	return nil
}

// ShowAll prints the roster table
func (c *Console) ShowAll() {
	RenderTable(c.out, c.store.ListAll())
}

// RenderTable writes records as fixed-width columns.
func RenderTable(w io.Writer, records []models.StudentRecord) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No records found!")
		return
	}
	fmt.Fprintf(w, "%-10s%-20s%-10s%-15s\n", "Roll", "Name", "Class", "Parent Phone")
	fmt.Fprintln(w, separator)
	for _, r := range records {
		fmt.Fprintf(w, "%-10d%-20s%-10s%-15s\n", r.Roll, r.Name, r.StudentClass, r.ParentPhone)
	}
}
